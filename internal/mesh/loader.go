package mesh

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// descriptorRecord is the subset of a MeSH DescriptorRecord that is loaded.
type descriptorRecord struct {
	UI       string `xml:"DescriptorUI"`
	Name     string `xml:"DescriptorName>String"`
	Concepts []struct {
		Terms []string `xml:"TermList>Term>String"`
	} `xml:"ConceptList>Concept"`
	TreeNumbers []string `xml:"TreeNumberList>TreeNumber"`
}

// LoadFile reads terms from a MeSH descriptor XML file (desc20XX.xml) or a
// JSON array of terms, chosen by extension.
func LoadFile(path string) ([]*store.Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f)
	case ".xml", ".gz":
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			return nil, fmt.Errorf("compressed dictionaries are not supported: decompress %s first", path)
		}
		return ReadXML(f)
	default:
		return nil, fmt.Errorf("unsupported dictionary format %q (want .xml or .json)", filepath.Ext(path))
	}
}

// ReadXML streams DescriptorRecord elements from r. Synonyms are every
// concept term string other than the preferred name, in document order.
// Records without a UI or name are skipped.
func ReadXML(r io.Reader) ([]*store.Term, error) {
	dec := xml.NewDecoder(r)
	var terms []*store.Term

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse dictionary XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "DescriptorRecord" {
			continue
		}

		var rec descriptorRecord
		if err := dec.DecodeElement(&rec, &start); err != nil {
			return nil, fmt.Errorf("failed to decode descriptor: %w", err)
		}
		if t := rec.term(); t != nil {
			terms = append(terms, t)
		}
	}

	return terms, nil
}

func (rec descriptorRecord) term() *store.Term {
	id := strings.TrimSpace(rec.UI)
	name := strings.TrimSpace(rec.Name)
	if id == "" || name == "" {
		return nil
	}

	t := &store.Term{ID: id, PreferredName: name}
	for _, c := range rec.Concepts {
		for _, s := range c.Terms {
			s = strings.TrimSpace(s)
			if s != "" && s != name {
				t.Synonyms = append(t.Synonyms, s)
			}
		}
	}
	for _, tn := range rec.TreeNumbers {
		if tn = strings.TrimSpace(tn); tn != "" {
			t.TreeNumbers = append(t.TreeNumbers, tn)
		}
	}
	return t
}

// ReadJSON decodes a JSON array of terms.
func ReadJSON(r io.Reader) ([]*store.Term, error) {
	var terms []*store.Term
	if err := json.NewDecoder(r).Decode(&terms); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary JSON: %w", err)
	}

	out := terms[:0]
	for _, t := range terms {
		if t != nil && t.ID != "" && t.PreferredName != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
