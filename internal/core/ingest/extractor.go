package ingest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"pdfrag/pkg/logger"
)

// ExtractPages returns the plain text of every page, 1-based page order
// preserved. Pages that cannot be read yield an empty string instead of
// failing the whole document.
func ExtractPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ingest: open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("ingest: failed to extract page %d: %v", i, err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
