package mesh

import "github.com/raghaviCJanaswamy/GEOSearch/internal/store"

// SampleTerms returns a small dictionary of common biomedical descriptors
// for trying the system without the full MeSH release.
func SampleTerms() []*store.Term {
	return []*store.Term{
		{ID: "D001943", PreferredName: "Breast Neoplasms",
			Synonyms:    []string{"Breast Cancer", "Mammary Cancer", "Breast Tumor", "Mammary Carcinoma"},
			TreeNumbers: []string{"C04.588.180", "C17.800.090.500"}},
		{ID: "D008175", PreferredName: "Lung Neoplasms",
			Synonyms:    []string{"Lung Cancer", "Pulmonary Cancer", "Lung Tumor"},
			TreeNumbers: []string{"C04.588.894.797.520", "C08.381.540"}},
		{ID: "D012313", PreferredName: "RNA",
			Synonyms:    []string{"Ribonucleic Acid", "RNA Molecules"},
			TreeNumbers: []string{"D13.444.735"}},
		{ID: "D017423", PreferredName: "Sequence Analysis, RNA",
			Synonyms:    []string{"RNA-Seq", "RNA Sequencing", "Transcriptome Sequencing"},
			TreeNumbers: []string{"E05.393.620.700"}},
		{ID: "D059014", PreferredName: "High-Throughput Nucleotide Sequencing",
			Synonyms:    []string{"Next-Generation Sequencing", "NGS", "Massively Parallel Sequencing"},
			TreeNumbers: []string{"E05.393.620.500"}},
		{ID: "D020869", PreferredName: "Gene Expression Profiling",
			Synonyms:    []string{"Expression Profiling", "Transcriptional Profiling"},
			TreeNumbers: []string{"E05.393.420"}},
		{ID: "D008657", PreferredName: "Metabolic Diseases",
			Synonyms:    []string{"Metabolic Disorder", "Metabolism Disorders"},
			TreeNumbers: []string{"C18.452"}},
		{ID: "D003920", PreferredName: "Diabetes Mellitus",
			Synonyms:    []string{"Diabetes", "Diabetes Mellitus"},
			TreeNumbers: []string{"C18.452.394.750", "C19.246"}},
		{ID: "D009369", PreferredName: "Neoplasms",
			Synonyms:    []string{"Cancer", "Tumor", "Malignancy", "Cancers", "Tumors"},
			TreeNumbers: []string{"C04"}},
		{ID: "D006801", PreferredName: "Humans",
			Synonyms:    []string{"Human", "Homo sapiens"},
			TreeNumbers: []string{"B01.050.150.900.649.313.988.400.112.400.400"}},
		{ID: "D051379", PreferredName: "Mice",
			Synonyms:    []string{"Mouse", "Mus musculus"},
			TreeNumbers: []string{"B01.050.150.900.649.313.992.635.505.500"}},
		{ID: "D016513", PreferredName: "Mice, Inbred C57BL",
			Synonyms:    []string{"C57BL Mice", "C57BL/6", "C57 Black"},
			TreeNumbers: []string{"B01.050.150.900.649.313.992.635.505.500.850"}},
		{ID: "D020411", PreferredName: "Oligonucleotide Array Sequence Analysis",
			Synonyms:    []string{"Microarray", "Gene Chip", "DNA Microarray", "Microarray Analysis"},
			TreeNumbers: []string{"E05.393.625"}},
		{ID: "D059010", PreferredName: "Single-Cell Analysis",
			Synonyms:    []string{"Single Cell", "Single-Cell", "Single Cell Analysis"},
			TreeNumbers: []string{"E05.200.750"}},
		{ID: "D002455", PreferredName: "Cell Division",
			Synonyms:    []string{"Cell Cycle", "Mitosis"},
			TreeNumbers: []string{"G04.299"}},
	}
}
