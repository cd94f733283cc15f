package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/index"
)

type fakeBackend struct {
	searchQueries []index.Query
	searchHits    []index.Hit
	searchErr     error

	multiQueries [][]index.Query
	multiHits    [][]index.Hit
	multiErr     error
}

func (f *fakeBackend) Search(_ context.Context, q index.Query) ([]index.Hit, error) {
	f.searchQueries = append(f.searchQueries, q)
	return f.searchHits, f.searchErr
}

func (f *fakeBackend) MultiSearch(_ context.Context, queries []index.Query) ([][]index.Hit, error) {
	f.multiQueries = append(f.multiQueries, queries)
	return f.multiHits, f.multiErr
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func hit(chunkID string, score float64) index.Hit {
	return index.Hit{ChunkID: chunkID, DocumentID: "doc-1", Text: "text " + chunkID, Score: score}
}

func TestRankEmptyQueryRejected(t *testing.T) {
	backend := &fakeBackend{}
	fuser := NewFuser(backend, &fakeEmbedder{}, 0)

	_, err := fuser.Rank(context.Background(), Request{Query: "   ", Mode: ModeLexical})
	require.Error(t, err)
	assert.Empty(t, backend.searchQueries)
}

func TestRankLexical(t *testing.T) {
	backend := &fakeBackend{searchHits: []index.Hit{hit("c1", 2.0), hit("c2", 1.0)}}
	fuser := NewFuser(backend, &fakeEmbedder{}, 0)

	results, err := fuser.Rank(context.Background(), Request{
		Query:       "revenue",
		Mode:        ModeLexical,
		DocumentIDs: []string{"doc-1"},
		PageSize:    5,
		Highlight:   true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OriginLexical, results[0].Origin)
	assert.Equal(t, 2.0, results[0].Score)

	require.Len(t, backend.searchQueries, 1)
	q := backend.searchQueries[0]
	assert.Equal(t, "revenue", q.Text)
	assert.Nil(t, q.Vector)
	assert.Equal(t, []string{"doc-1"}, q.DocumentIDs)
	assert.True(t, q.Highlight)
}

func TestRankVectorCandidatePool(t *testing.T) {
	backend := &fakeBackend{searchHits: []index.Hit{hit("c1", 0.9)}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	fuser := NewFuser(backend, embedder, 4)

	results, err := fuser.Rank(context.Background(), Request{Query: "migration", Mode: ModeVector, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OriginVector, results[0].Origin)

	require.Len(t, backend.searchQueries, 1)
	q := backend.searchQueries[0]
	assert.Equal(t, []float32{0.1, 0.2}, q.Vector)
	assert.Equal(t, 5, q.K)
	assert.Equal(t, 20, q.NumCandidates)
	assert.Equal(t, 1, embedder.calls)
}

func TestRankVectorEmbedFailure(t *testing.T) {
	backend := &fakeBackend{}
	fuser := NewFuser(backend, &fakeEmbedder{err: errors.New("quota exceeded")}, 0)

	_, err := fuser.Rank(context.Background(), Request{Query: "migration", Mode: ModeVector})
	require.Error(t, err)
	assert.Empty(t, backend.searchQueries)
}

func TestRankHybridFusion(t *testing.T) {
	backend := &fakeBackend{multiHits: [][]index.Hit{
		{hit("c1", 4.0), hit("c2", 2.0)},
		{hit("c2", 0.9), hit("c3", 0.8)},
	}}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	results, err := fuser.Rank(context.Background(), Request{
		Query:    "churn",
		Mode:     ModeHybrid,
		PageSize: 10,
		Weights:  Weights{Lexical: 0.5, Vector: 0.5},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// c1: 4.0*0.5=2.0, c2: max(2.0*0.5, 0.9*0.5)=1.0, c3: 0.8*0.5=0.4
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, 2.0, results[0].Score)
	assert.Equal(t, "c2", results[1].ChunkID)
	assert.Equal(t, 1.0, results[1].Score)
	assert.Equal(t, OriginLexical, results[1].Origin)
	assert.Equal(t, "c3", results[2].ChunkID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRankHybridDuplicateKeepsHigherWeightedScore(t *testing.T) {
	backend := &fakeBackend{multiHits: [][]index.Hit{
		{hit("c1", 1.0)},
		{hit("c1", 0.9)},
	}}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	results, err := fuser.Rank(context.Background(), Request{
		Query:    "churn",
		Mode:     ModeHybrid,
		PageSize: 10,
		Weights:  Weights{Lexical: 0.2, Vector: 0.8},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// vector side wins: 0.9*0.8=0.72 over 1.0*0.2=0.2
	assert.Equal(t, OriginVector, results[0].Origin)
	assert.InDelta(t, 0.72, results[0].Score, 1e-9)
}

func TestRankHybridTruncatesToPageSize(t *testing.T) {
	backend := &fakeBackend{multiHits: [][]index.Hit{
		{hit("c1", 5.0), hit("c2", 4.0), hit("c3", 3.0)},
		{hit("c4", 0.9), hit("c5", 0.8)},
	}}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	results, err := fuser.Rank(context.Background(), Request{Query: "churn", Mode: ModeHybrid, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRankHybridBackendFailure(t *testing.T) {
	backend := &fakeBackend{multiErr: errors.New("sub-query failed")}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	_, err := fuser.Rank(context.Background(), Request{Query: "churn", Mode: ModeHybrid})
	require.Error(t, err)
}

func TestRetrieveCleansQueryAndAdaptsWeights(t *testing.T) {
	backend := &fakeBackend{multiHits: [][]index.Hit{{hit("c1", 1.0)}, {hit("c1", 1.0)}}}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	results, err := fuser.Retrieve(context.Background(), "Can you explain the revenue growth?", ModeHybrid, nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, backend.multiQueries, 1)
	assert.Equal(t, "revenue growth", backend.multiQueries[0][0].Text)

	// two content tokens: lexical-leaning weights, so the lexical side wins the dedup
	assert.Equal(t, OriginLexical, results[0].Origin)
	assert.InDelta(t, 0.7, results[0].Score, 1e-9)
}

func TestRetrieveFallsBackToRawQuery(t *testing.T) {
	backend := &fakeBackend{multiHits: [][]index.Hit{nil, nil}}
	fuser := NewFuser(backend, &fakeEmbedder{vector: []float32{0.5}}, 0)

	_, err := fuser.Retrieve(context.Background(), "What is the?", ModeHybrid, nil, 5)
	require.NoError(t, err)
	require.Len(t, backend.multiQueries, 1)
	assert.Equal(t, "What is the?", backend.multiQueries[0][0].Text)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, mode)

	mode, err = ParseMode("Lexical")
	require.NoError(t, err)
	assert.Equal(t, ModeLexical, mode)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}
