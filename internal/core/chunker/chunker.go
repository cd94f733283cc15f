package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"pdfrag/pkg/logger"

	"github.com/google/uuid"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Chunk is the atomic retrieval unit extracted from one document page.
// Immutable after creation; all chunks of a document share its DocumentID.
type Chunk struct {
	ID         string
	DocumentID string
	PageNumber int
	Text       string
	Embedding  []float32
}

// Params bound the chunk size and the tail carried over between neighbours.
type Params struct {
	MaxSize int
	Overlap int
}

func (p Params) Validate() error {
	if p.MaxSize <= 0 {
		return fmt.Errorf("chunker: max size must be positive, got %d", p.MaxSize)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("chunker: overlap must not be negative, got %d", p.Overlap)
	}
	if p.Overlap >= p.MaxSize {
		return fmt.Errorf("chunker: overlap (%d) must be smaller than max size (%d)", p.Overlap, p.MaxSize)
	}
	return nil
}

var (
	spaceRuns   = regexp.MustCompile(`\s+`)
	newlineRuns = regexp.MustCompile(`\n+`)
)

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\f", " ")
	text = strings.TrimSpace(spaceRuns.ReplaceAllString(text, " "))
	text = strings.TrimSpace(newlineRuns.ReplaceAllString(text, "\n"))
	return text
}

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// splitSentences breaks normalized text into sentence-like segments. The
// trained english tokenizer is preferred; when it is unavailable the text is
// split on periods with a synthesized trailing period per fragment.
func splitSentences(text string) []string {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			logger.Error(err, "chunker: sentence tokenizer unavailable, using fallback")
			return
		}
		tokenizer = t
	})

	if tokenizer != nil {
		toks := tokenizer.Tokenize(text)
		out := make([]string, 0, len(toks))
		for _, tk := range toks {
			if s := strings.TrimSpace(tk.Text); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	parts := strings.Split(text, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s+".")
		}
	}
	return out
}

// Split chunks one page's text into size-bounded, overlapping chunks.
// A blank page produces zero chunks. Callers must validate params first;
// a sentence longer than MaxSize is emitted whole as its own chunk.
func Split(pageText, documentID string, pageNumber int, params Params) []Chunk {
	text := normalize(pageText)
	if text == "" {
		return nil
	}
	return accumulate(splitSentences(text), documentID, pageNumber, params)
}

func accumulate(segments []string, documentID string, pageNumber int, params Params) []Chunk {
	chunks := make([]Chunk, 0, 4)
	emit := func(text string) {
		chunks = append(chunks, Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			PageNumber: pageNumber,
			Text:       text,
		})
	}

	var buffer string
	for _, segment := range segments {
		switch {
		case len(buffer)+len(segment) > params.MaxSize && buffer != "":
			emit(buffer)
			// Seed the next buffer with the closed chunk's tail for context.
			if t := tail(buffer, params.Overlap); t != "" {
				buffer = t + " " + segment
			} else {
				buffer = segment
			}
		case buffer == "":
			buffer = segment
		default:
			buffer += " " + segment
		}
	}
	if buffer != "" {
		emit(buffer)
	}
	return chunks
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
