package answer

import "pdfrag/internal/core/citation"

// Event types emitted on the answer stream. A stream carries zero or more
// fragment events followed by exactly one terminal event, either citations
// (the finished answer) or error. A cancelled consumer gets neither.
const (
	EventFragment  = "fragment"
	EventCitations = "citations"
	EventError     = "error"
)

type Event struct {
	Type      string              `json:"type"`
	Content   string              `json:"content"`
	Citations []citation.Citation `json:"citations,omitempty"`
}
