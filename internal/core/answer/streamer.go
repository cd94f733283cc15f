package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdfrag/internal/core/citation"
	"pdfrag/internal/core/ranking"
	"pdfrag/pkg/logger"
)

// Retriever fetches ranked context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, mode ranking.Mode, documentIDs []string, pageSize int) (ranking.ResultSet, error)
}

// Generator produces answers from a prompt, whole or incrementally. Stream
// calls emit once per fragment and stops when emit returns an error.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string, emit func(fragment string) error) error
}

type Config struct {
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	TopK              int
}

// Streamer answers questions grounded in retrieved chunks.
type Streamer struct {
	retriever Retriever
	generator Generator
	cfg       Config
}

func NewStreamer(retriever Retriever, generator Generator, cfg Config) *Streamer {
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 5 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = ranking.DefaultPageSize
	}
	return &Streamer{retriever: retriever, generator: generator, cfg: cfg}
}

// Request is one question to answer.
type Request struct {
	Query       string
	Mode        ranking.Mode
	DocumentIDs []string
	TopK        int
}

// Result is a complete non-streamed answer.
type Result struct {
	Query     string              `json:"query"`
	Answer    string              `json:"answer"`
	Citations []citation.Citation `json:"citations"`
}

func (s *Streamer) retrieve(ctx context.Context, req Request) (ranking.ResultSet, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	mode := req.Mode
	if mode == "" {
		mode = ranking.ModeHybrid
	}
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()
	return s.retriever.Retrieve(rctx, req.Query, mode, req.DocumentIDs, topK)
}

// Answer runs the full pipeline synchronously.
func (s *Streamer) Answer(ctx context.Context, req Request) (Result, error) {
	results, err := s.retrieve(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("answer: retrieval failed: %w", err)
	}
	if len(results) == 0 {
		return Result{Query: req.Query, Answer: NoContextAnswer, Citations: []citation.Citation{}}, nil
	}

	system, user := BuildPrompt(req.Query, results)
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()
	text, err := s.generator.Complete(gctx, system, user)
	if err != nil {
		return Result{}, fmt.Errorf("answer: generation failed: %w", err)
	}

	rewritten, citations := citation.Resolve(text, results)
	return Result{Query: req.Query, Answer: rewritten, Citations: citations}, nil
}

// Stream runs the pipeline and emits events on the returned channel. The
// channel is closed after the terminal event, or without one when ctx is
// cancelled while the consumer is gone.
func (s *Streamer) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		results, err := s.retrieve(ctx, req)
		if err != nil {
			logger.Error(err, "answer: retrieval failed for query %q", req.Query)
			send(Event{Type: EventError, Content: "retrieval failed: " + err.Error()})
			return
		}
		if len(results) == 0 {
			send(Event{Type: EventCitations, Content: NoContextAnswer, Citations: []citation.Citation{}})
			return
		}

		system, user := BuildPrompt(req.Query, results)
		gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()

		var full strings.Builder
		err = s.generator.Stream(gctx, system, user, func(fragment string) error {
			full.WriteString(fragment)
			if !send(Event{Type: EventFragment, Content: fragment}) {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				// consumer is gone, nobody left to tell
				return
			}
			logger.Error(err, "answer: generation failed for query %q", req.Query)
			send(Event{Type: EventError, Content: "generation failed: " + err.Error()})
			return
		}

		rewritten, citations := citation.Resolve(full.String(), results)
		send(Event{Type: EventCitations, Content: rewritten, Citations: citations})
	}()
	return events
}
