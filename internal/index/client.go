package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"pdfrag/config"
	"pdfrag/pkg/logger"
)

const mappingTemplate = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "chunk_id":    {"type": "keyword"},
      "document_id": {"type": "keyword"},
      "filename":    {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "page_number": {"type": "integer"},
      "text":        {"type": "text", "analyzer": "standard"},
      "embedding":   {"type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine"},
      "indexed_at":  {"type": "date"}
    }
  }
}`

// Client wraps the search index for chunk storage and retrieval.
type Client struct {
	es    *elasticsearch.Client
	index string
}

func New() (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     config.Cfg.Elasticsearch.Addresses,
		Username:      config.Cfg.Elasticsearch.Username,
		Password:      config.Cfg.Elasticsearch.Password,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    3,
	})
	if err != nil {
		return nil, fmt.Errorf("index: create client: %w", err)
	}
	return &Client{es: es, index: config.Cfg.Elasticsearch.Index}, nil
}

// Ping verifies the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index: ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index: ping: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the chunk index with its mapping when it does not exist
// yet. Safe to call on every startup.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index: check index %s: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("index: check index %s: unexpected status %d", c.index, res.StatusCode)
	}

	mapping := fmt.Sprintf(mappingTemplate, config.Cfg.OpenAI.EmbeddingDimension)
	created, err := c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("index: create index %s: %w", c.index, err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("index: create index %s: %s", c.index, responseError(created))
	}
	logger.Info("index: created index %s", c.index)
	return nil
}

// BulkUpsert writes chunk documents in one bulk request, keyed by chunk id so
// a re-ingest of the same chunk overwrites instead of duplicating.
func (c *Client) BulkUpsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, d := range docs {
		fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`, c.index, d.ChunkID)
		buf.WriteByte('\n')
		src, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("index: marshal chunk %s: %w", d.ChunkID, err)
		}
		buf.Write(src)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index: bulk upsert: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index: bulk upsert: %s", responseError(res))
	}

	var report struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		return fmt.Errorf("index: decode bulk response: %w", err)
	}
	if report.Errors {
		for _, item := range report.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("index: bulk upsert rejected: %s: %s", op.Error.Type, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("index: bulk upsert rejected")
	}
	return nil
}

// DeleteByDocument removes every chunk belonging to a document.
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	body := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := c.es.DeleteByQuery([]string{c.index}, strings.NewReader(body),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("index: delete chunks of %s: %w", documentID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index: delete chunks of %s: %s", documentID, responseError(res))
	}
	return nil
}

// Search runs one query and returns its scored hits.
func (c *Client) Search(ctx context.Context, q Query) ([]Hit, error) {
	body, err := json.Marshal(buildBody(q))
	if err != nil {
		return nil, fmt.Errorf("index: marshal query: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("index: search: %s", responseError(res))
	}

	var parsed esResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("index: decode search response: %w", err)
	}
	return parsed.hits(), nil
}

// MultiSearch runs several queries in one round trip. A failure of any
// sub-query fails the whole call, so a partial hybrid result never leaks out.
func (c *Client) MultiSearch(ctx context.Context, queries []Query) ([][]Hit, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	for _, q := range queries {
		fmt.Fprintf(&buf, `{"index":%q}`, c.index)
		buf.WriteByte('\n')
		body, err := json.Marshal(buildBody(q))
		if err != nil {
			return nil, fmt.Errorf("index: marshal query: %w", err)
		}
		buf.Write(body)
		buf.WriteByte('\n')
	}

	res, err := c.es.Msearch(bytes.NewReader(buf.Bytes()), c.es.Msearch.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("index: msearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("index: msearch: %s", responseError(res))
	}

	var parsed struct {
		Responses []esResponse `json:"responses"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("index: decode msearch response: %w", err)
	}
	if len(parsed.Responses) != len(queries) {
		return nil, fmt.Errorf("index: msearch returned %d responses for %d queries", len(parsed.Responses), len(queries))
	}

	out := make([][]Hit, len(parsed.Responses))
	for i, resp := range parsed.Responses {
		if resp.Error != nil {
			return nil, fmt.Errorf("index: msearch sub-query %d: %s: %s", i, resp.Error.Type, resp.Error.Reason)
		}
		out[i] = resp.hits()
	}
	return out, nil
}

// SearchAll pages through all indexed chunks without ranking.
func (c *Client) SearchAll(ctx context.Context, from, size int) ([]Hit, int64, error) {
	hits, total, err := c.searchTotal(ctx, Query{From: from, Size: size})
	if err != nil {
		return nil, 0, err
	}
	return hits, total, nil
}

func (c *Client) searchTotal(ctx context.Context, q Query) ([]Hit, int64, error) {
	body, err := json.Marshal(buildBody(q))
	if err != nil {
		return nil, 0, fmt.Errorf("index: marshal query: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("index: search: %s", responseError(res))
	}

	var parsed esResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("index: decode search response: %w", err)
	}
	return parsed.hits(), parsed.Hits.Total.Value, nil
}

type esResponse struct {
	Error *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    Document            `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r esResponse) hits() []Hit {
	out := make([]Hit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		out = append(out, Hit{
			ChunkID:    h.Source.ChunkID,
			DocumentID: h.Source.DocumentID,
			Filename:   h.Source.Filename,
			PageNumber: h.Source.PageNumber,
			Text:       h.Source.Text,
			Score:      score,
			Highlight:  h.Highlight["text"],
		})
	}
	return out
}

func responseError(res *esapi.Response) string {
	data, err := io.ReadAll(res.Body)
	if err != nil || len(data) == 0 {
		return res.Status()
	}
	var parsed struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Type != "" {
		return fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Reason)
	}
	return string(data)
}
