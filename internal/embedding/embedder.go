// Package embedding turns text into vectors through the OpenAI embeddings
// API. Blank inputs never reach the API and come back as zero vectors so
// empty pages cannot fail an ingest.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"pdfrag/config"
)

type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
}

func New() *Embedder {
	return &Embedder{
		client:    openai.NewClient(option.WithAPIKey(config.Cfg.OpenAI.Key)),
		model:     config.Cfg.OpenAI.EmbeddingModel,
		dimension: config.Cfg.OpenAI.EmbeddingDimension,
		batchSize: config.Cfg.OpenAI.EmbeddingBatchSize,
	}
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in API-sized batches and returns one vector per
// input, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	pending := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, e.dimension)
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		inputs := make([]string, len(batch))
		for j, idx := range batch {
			inputs[j] = texts[idx]
		}

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model:      openai.EmbeddingModel(e.model),
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
			Dimensions: openai.Int(int64(e.dimension)),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: embed batch of %d: %w", len(inputs), err)
		}
		if len(resp.Data) != len(inputs) {
			return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(resp.Data), len(inputs))
		}

		for _, data := range resp.Data {
			vec := make([]float32, len(data.Embedding))
			for k, v := range data.Embedding {
				vec[k] = float32(v)
			}
			out[batch[data.Index]] = vec
		}
	}
	return out, nil
}
