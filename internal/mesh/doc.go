// Package mesh recognizes controlled-vocabulary (MeSH) terms in free text.
//
// A TermIndex maps normalized phrases (preferred names and synonyms) to term
// IDs. It is immutable once built; the Registry swaps in a rebuilt index on
// reload so in-flight searches keep a consistent snapshot. The Matcher scores
// term occurrences in record text, the Expander rewrites queries with
// recognized terms, and the Tagger persists matches as associations.
package mesh
