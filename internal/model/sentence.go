package model

// Sentence is a candidate evidence sentence extracted from a project document.
// Sentences are created during extraction, consumed by factor matching, and
// not persisted individually afterwards.
type Sentence struct {
	SourceDocument string `json:"source_document"` // Filename of the originating PDF
	Text           string `json:"text"`            // Cleaned sentence text
}

// EvidenceMap groups evidence sentences by SDG factor name. Within a factor
// the order is meaningful: most relevant first (descending similarity at
// matching time, first-seen order preserved through refinement).
type EvidenceMap map[string][]string

// Document is the raw text of a single project document.
type Document struct {
	Filename string
	Path     string
	Text     string
}
