package index

import "time"

// Document is the indexed record for one chunk. The embedding travels to the
// index on write and is excluded from every search response.
type Document struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	PageNumber int       `json:"page_number"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Query describes one request against the index. Text drives a lexical
// multi-field match, Vector a kNN search; exactly one of them is set per
// query issued by the ranking layer.
type Query struct {
	Text          string
	Vector        []float32
	K             int
	NumCandidates int
	DocumentIDs   []string
	From          int
	Size          int
	Highlight     bool
}

// Hit is one scored result row.
type Hit struct {
	ChunkID    string
	DocumentID string
	Filename   string
	PageNumber int
	Text       string
	Score      float64
	Highlight  []string
}
