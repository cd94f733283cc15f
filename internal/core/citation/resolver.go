// Package citation rewrites the bracketed source markers a generated answer
// contains into a compact numbering and resolves each one to the chunk it
// points at.
package citation

import (
	"regexp"
	"strconv"

	"pdfrag/internal/core/ranking"
	"pdfrag/pkg/logger"
)

// Citation ties one renumbered marker back to its source chunk.
type Citation struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Marker     string `json:"marker"`
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

type marker struct {
	start, end, raw int
}

// Resolve renumbers the [n] markers in text by order of first appearance and
// returns the rewritten text with one citation per distinct valid marker.
// Markers pointing outside the result range are logged and left untouched.
// Retrieval order is 1-based: [1] is results[0].
func Resolve(text string, results ranking.ResultSet) (string, []Citation) {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	citations := make([]Citation, 0, len(matches))
	if len(matches) == 0 {
		return text, citations
	}

	markers := make([]marker, 0, len(matches))
	for _, m := range matches {
		raw, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		markers = append(markers, marker{start: m[0], end: m[1], raw: raw})
	}

	assigned := make(map[int]int, len(markers))
	for _, mk := range markers {
		if _, seen := assigned[mk.raw]; seen {
			continue
		}
		if mk.raw < 1 || mk.raw > len(results) {
			logger.Warn("citation: marker [%d] outside result range 1..%d, skipped", mk.raw, len(results))
			continue
		}
		seq := len(citations) + 1
		assigned[mk.raw] = seq
		src := results[mk.raw-1]
		citations = append(citations, Citation{
			DocumentID: src.DocumentID,
			Filename:   src.Filename,
			Marker:     "[" + strconv.Itoa(seq) + "]",
			PageNumber: src.PageNumber,
			Text:       src.Text,
		})
	}

	// rewrite from the last marker back so earlier offsets stay valid
	out := text
	for i := len(markers) - 1; i >= 0; i-- {
		seq, ok := assigned[markers[i].raw]
		if !ok {
			continue
		}
		out = out[:markers[i].start] + "[" + strconv.Itoa(seq) + "]" + out[markers[i].end:]
	}
	return out, citations
}
