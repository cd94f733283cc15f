package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pdfrag/internal/index"
	"pdfrag/pkg/logger"
)

// Mode selects the retrieval strategy for one search.
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// ParseMode validates a client-supplied search type. Empty means hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeHybrid, nil
	case ModeLexical:
		return ModeLexical, nil
	case ModeVector:
		return ModeVector, nil
	case ModeHybrid:
		return ModeHybrid, nil
	}
	return "", fmt.Errorf("ranking: unknown search type %q", s)
}

// Origin records which side of a hybrid search produced a hit.
type Origin string

const (
	OriginLexical Origin = "lexical"
	OriginVector  Origin = "vector"
)

// Hit is a ranked result. Score already carries the fusion weight.
type Hit struct {
	index.Hit
	Origin Origin
}

type ResultSet []Hit

// Weights scale the raw scores of the two hybrid sides before fusion.
type Weights struct {
	Lexical float64
	Vector  float64
}

var DefaultWeights = Weights{Lexical: 0.5, Vector: 0.5}

const (
	shortQueryTokens = 3
	longQueryTokens  = 8

	// kNN candidate pool per requested page, trading recall for latency.
	DefaultCandidateMultiplier = 4

	DefaultPageSize = 5
)

// AutoWeights picks fusion weights from the query length. Short keyword-style
// queries lean lexical, long natural-language questions lean vector.
func AutoWeights(query string) Weights {
	n := len(strings.Fields(query))
	switch {
	case n <= shortQueryTokens:
		return Weights{Lexical: 0.7, Vector: 0.3}
	case n >= longQueryTokens:
		return Weights{Lexical: 0.2, Vector: 0.8}
	default:
		return Weights{Lexical: 0.4, Vector: 0.6}
	}
}

// Backend is the slice of the index the fuser needs.
type Backend interface {
	Search(ctx context.Context, q index.Query) ([]index.Hit, error)
	MultiSearch(ctx context.Context, queries []index.Query) ([][]index.Hit, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fuser runs lexical, vector and hybrid searches and merges their results.
type Fuser struct {
	backend             Backend
	embedder            Embedder
	candidateMultiplier int
}

func NewFuser(backend Backend, embedder Embedder, candidateMultiplier int) *Fuser {
	if candidateMultiplier <= 0 {
		candidateMultiplier = DefaultCandidateMultiplier
	}
	return &Fuser{backend: backend, embedder: embedder, candidateMultiplier: candidateMultiplier}
}

// Request describes one ranked search.
type Request struct {
	Query       string
	Mode        Mode
	DocumentIDs []string
	PageSize    int
	Weights     Weights
	Highlight   bool
}

// Rank executes the request and returns at most PageSize hits ordered by
// descending weighted score. Zero-value Weights fall back to DefaultWeights.
func (f *Fuser) Rank(ctx context.Context, req Request) (ResultSet, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("ranking: query must not be empty")
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	if req.Weights == (Weights{}) {
		req.Weights = DefaultWeights
	}

	switch req.Mode {
	case ModeLexical:
		hits, err := f.backend.Search(ctx, f.lexicalQuery(query, req))
		if err != nil {
			return nil, err
		}
		return fuse(hits, nil, Weights{Lexical: 1}, req.PageSize), nil

	case ModeVector:
		vector, err := f.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("ranking: embed query: %w", err)
		}
		hits, err := f.backend.Search(ctx, f.vectorQuery(vector, req))
		if err != nil {
			return nil, err
		}
		return fuse(nil, hits, Weights{Vector: 1}, req.PageSize), nil

	case ModeHybrid:
		vector, err := f.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("ranking: embed query: %w", err)
		}
		lists, err := f.backend.MultiSearch(ctx, []index.Query{
			f.lexicalQuery(query, req),
			f.vectorQuery(vector, req),
		})
		if err != nil {
			return nil, err
		}
		if len(lists) != 2 {
			return nil, fmt.Errorf("ranking: expected 2 result lists, got %d", len(lists))
		}
		return fuse(lists[0], lists[1], req.Weights, req.PageSize), nil
	}
	return nil, fmt.Errorf("ranking: unknown search type %q", req.Mode)
}

// Retrieve is the retrieval-for-generation path: the query is cleaned first
// and the fusion weights adapt to its length.
func (f *Fuser) Retrieve(ctx context.Context, query string, mode Mode, documentIDs []string, pageSize int) (ResultSet, error) {
	cleaned := PrepareQuery(query)
	if cleaned == "" {
		cleaned = strings.TrimSpace(query)
	}
	logger.Debug("ranking: retrieve query %q cleaned to %q", query, cleaned)
	return f.Rank(ctx, Request{
		Query:       cleaned,
		Mode:        mode,
		DocumentIDs: documentIDs,
		PageSize:    pageSize,
		Weights:     AutoWeights(cleaned),
	})
}

func (f *Fuser) lexicalQuery(query string, req Request) index.Query {
	return index.Query{
		Text:        query,
		DocumentIDs: req.DocumentIDs,
		Size:        req.PageSize,
		Highlight:   req.Highlight,
	}
}

func (f *Fuser) vectorQuery(vector []float32, req Request) index.Query {
	return index.Query{
		Vector:        vector,
		K:             req.PageSize,
		NumCandidates: req.PageSize * f.candidateMultiplier,
		DocumentIDs:   req.DocumentIDs,
		Size:          req.PageSize,
	}
}

// fuse weights both hit lists, deduplicates by chunk keeping the higher
// weighted score, sorts by score descending and truncates to size. Ties break
// on chunk id so the ordering is stable across runs.
func fuse(lexical, vector []index.Hit, w Weights, size int) ResultSet {
	best := make(map[string]Hit, len(lexical)+len(vector))
	add := func(hits []index.Hit, weight float64, origin Origin) {
		for _, h := range hits {
			h.Score *= weight
			cand := Hit{Hit: h, Origin: origin}
			if cur, ok := best[h.ChunkID]; !ok || cand.Score > cur.Score {
				best[h.ChunkID] = cand
			}
		}
	}
	add(lexical, w.Lexical, OriginLexical)
	add(vector, w.Vector, OriginVector)

	out := make(ResultSet, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > size {
		out = out[:size]
	}
	return out
}
