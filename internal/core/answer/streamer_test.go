package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/core/ranking"
	"pdfrag/internal/index"
)

type fakeRetriever struct {
	results ranking.ResultSet
	err     error
	query   string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ ranking.Mode, _ []string, _ int) (ranking.ResultSet, error) {
	f.query = query
	return f.results, f.err
}

type fakeGenerator struct {
	answer    string
	fragments []string
	err       error
	called    bool
}

func (f *fakeGenerator) Complete(_ context.Context, _, _ string) (string, error) {
	f.called = true
	return f.answer, f.err
}

func (f *fakeGenerator) Stream(ctx context.Context, _, _ string, emit func(string) error) error {
	f.called = true
	if f.err != nil && len(f.fragments) == 0 {
		return f.err
	}
	for _, frag := range f.fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	return f.err
}

func twoResults() ranking.ResultSet {
	return ranking.ResultSet{
		{Hit: index.Hit{ChunkID: "c1", DocumentID: "d1", Filename: "report.pdf", PageNumber: 1, Text: "revenue grew"}},
		{Hit: index.Hit{ChunkID: "c2", DocumentID: "d2", Filename: "notes.pdf", PageNumber: 3, Text: "costs fell"}},
	}
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamHappyPath(t *testing.T) {
	retriever := &fakeRetriever{results: twoResults()}
	generator := &fakeGenerator{fragments: []string{"Revenue grew ", "[1] and costs fell [2]."}}
	s := NewStreamer(retriever, generator, Config{})

	events := collect(s.Stream(context.Background(), Request{Query: "what happened?"}))
	require.Len(t, events, 3)

	assert.Equal(t, EventFragment, events[0].Type)
	assert.Equal(t, "Revenue grew ", events[0].Content)
	assert.Equal(t, EventFragment, events[1].Type)

	final := events[2]
	assert.Equal(t, EventCitations, final.Type)
	assert.Equal(t, "Revenue grew [1] and costs fell [2].", final.Content)
	require.Len(t, final.Citations, 2)
	assert.Equal(t, "report.pdf", final.Citations[0].Filename)
	assert.Equal(t, "notes.pdf", final.Citations[1].Filename)
}

func TestStreamExactlyOneTerminalEvent(t *testing.T) {
	retriever := &fakeRetriever{results: twoResults()}
	generator := &fakeGenerator{fragments: []string{"All good [1]."}}
	s := NewStreamer(retriever, generator, Config{})

	events := collect(s.Stream(context.Background(), Request{Query: "q"}))
	terminals := 0
	for i, ev := range events {
		if ev.Type == EventCitations || ev.Type == EventError {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestStreamNoContext(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{}
	s := NewStreamer(retriever, generator, Config{})

	events := collect(s.Stream(context.Background(), Request{Query: "unknown topic"}))
	require.Len(t, events, 1)
	assert.Equal(t, EventCitations, events[0].Type)
	assert.Equal(t, NoContextAnswer, events[0].Content)
	assert.Empty(t, events[0].Citations)
	assert.False(t, generator.called, "generator must not run without context")
}

func TestStreamRetrievalError(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("index unreachable")}
	generator := &fakeGenerator{}
	s := NewStreamer(retriever, generator, Config{})

	events := collect(s.Stream(context.Background(), Request{Query: "q"}))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Content, "retrieval failed")
	assert.False(t, generator.called)
}

func TestStreamGenerationErrorAfterFragments(t *testing.T) {
	retriever := &fakeRetriever{results: twoResults()}
	generator := &fakeGenerator{fragments: []string{"partial "}, err: errors.New("model overloaded")}
	s := NewStreamer(retriever, generator, Config{})

	events := collect(s.Stream(context.Background(), Request{Query: "q"}))
	require.Len(t, events, 2)
	assert.Equal(t, EventFragment, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Contains(t, events[1].Content, "generation failed")
}

func TestStreamCancelledConsumerGetsNoTerminal(t *testing.T) {
	retriever := &fakeRetriever{results: twoResults()}
	generator := &fakeGenerator{fragments: []string{"one ", "two ", "three "}}
	s := NewStreamer(retriever, generator, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Stream(ctx, Request{Query: "q"})

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, EventFragment, ev.Type)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			assert.NotEqual(t, EventCitations, ev.Type)
			assert.NotEqual(t, EventError, ev.Type)
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestAnswerHappyPath(t *testing.T) {
	retriever := &fakeRetriever{results: twoResults()}
	generator := &fakeGenerator{answer: "Costs fell [2] while revenue grew [1]."}
	s := NewStreamer(retriever, generator, Config{})

	result, err := s.Answer(context.Background(), Request{Query: "summary?"})
	require.NoError(t, err)
	assert.Equal(t, "Costs fell [1] while revenue grew [2].", result.Answer)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "notes.pdf", result.Citations[0].Filename)
	assert.Equal(t, "summary?", result.Query)
}

func TestAnswerNoContext(t *testing.T) {
	s := NewStreamer(&fakeRetriever{}, &fakeGenerator{}, Config{})

	result, err := s.Answer(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.NotNil(t, result.Citations)
	assert.Empty(t, result.Citations)
}

func TestAnswerGenerationError(t *testing.T) {
	s := NewStreamer(&fakeRetriever{results: twoResults()}, &fakeGenerator{err: errors.New("boom")}, Config{})

	_, err := s.Answer(context.Background(), Request{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
}

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt("what changed?", twoResults())
	assert.Contains(t, system, "ONLY from the context")
	assert.Contains(t, user, "[1] from 'report.pdf', page 1: revenue grew")
	assert.Contains(t, user, "[2] from 'notes.pdf', page 3: costs fell")
	assert.Contains(t, user, "Question: what changed?")
}
