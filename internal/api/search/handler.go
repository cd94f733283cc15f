package search

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"

	"pdfrag/config"
	"pdfrag/internal/core/answer"
	"pdfrag/internal/core/ranking"
	"pdfrag/internal/index"
	"pdfrag/pkg/apperror"
	"pdfrag/pkg/apperror/status"
	"pdfrag/pkg/logger"
)

const maxPageSize = 100

// Browser pages through all indexed chunks.
type Browser interface {
	SearchAll(ctx context.Context, from, size int) ([]index.Hit, int64, error)
}

type Handler struct {
	browser  Browser
	fuser    *ranking.Fuser
	streamer *answer.Streamer
}

func NewHandler(browser Browser, fuser *ranking.Fuser, streamer *answer.Streamer) *Handler {
	return &Handler{browser: browser, fuser: fuser, streamer: streamer}
}

type searchRequest struct {
	Query       string   `json:"query"`
	SearchType  string   `json:"searchType"`
	TopK        int      `json:"topK"`
	DocumentIDs []string `json:"documentIds"`
	Highlight   bool     `json:"highlight"`
}

type resultRow struct {
	ChunkID    string   `json:"chunkId"`
	DocumentID string   `json:"documentId"`
	Filename   string   `json:"filename"`
	PageNumber int      `json:"pageNumber"`
	Text       string   `json:"text"`
	Score      float64  `json:"score"`
	Origin     string   `json:"origin,omitempty"`
	Highlight  []string `json:"highlight,omitempty"`
}

func toRows(results ranking.ResultSet) []resultRow {
	rows := make([]resultRow, 0, len(results))
	for _, h := range results {
		rows = append(rows, resultRow{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Filename:   h.Filename,
			PageNumber: h.PageNumber,
			Text:       h.Text,
			Score:      h.Score,
			Origin:     string(h.Origin),
			Highlight:  h.Highlight,
		})
	}
	return rows
}

// HandleSearchAll pages through all indexed chunks without ranking.
func (h *Handler) HandleSearchAll(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	page := fiber.Query(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := fiber.Query(c, "page_size", 20)
	if size < 1 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	hits, total, err := h.browser.SearchAll(c.Context(), (page-1)*size, size)
	if err != nil {
		return apperror.InternalCoded(config.ModuleSearch, c, status.SearchIndexFailed, err)
	}

	rows := make([]resultRow, 0, len(hits))
	for _, hit := range hits {
		rows = append(rows, resultRow{
			ChunkID:    hit.ChunkID,
			DocumentID: hit.DocumentID,
			Filename:   hit.Filename,
			PageNumber: hit.PageNumber,
			Text:       hit.Text,
		})
	}

	return apperror.Success(config.ModuleSearch, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Chunks listed successfully",
		TrackingID: trackingID,
		Data: fiber.Map{
			"results":  rows,
			"total":    total,
			"page":     page,
			"pageSize": size,
		},
	})
}

func (h *Handler) parseSearchRequest(c fiber.Ctx) (searchRequest, ranking.Mode, error) {
	var req searchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return req, "", errors.New("invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, "", errors.New("query is required")
	}
	mode, err := ranking.ParseMode(req.SearchType)
	if err != nil {
		return req, "", errors.New("searchType must be lexical, vector or hybrid")
	}
	if req.TopK > maxPageSize {
		req.TopK = maxPageSize
	}
	return req, mode, nil
}

// HandleSearch runs a direct ranked search with the query taken verbatim.
func (h *Handler) HandleSearch(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	req, mode, err := h.parseSearchRequest(c)
	if err != nil {
		return apperror.BadRequest(config.ModuleSearch, c, status.InvalidRequestBody, err.Error())
	}

	results, err := h.fuser.Rank(c.Context(), ranking.Request{
		Query:       req.Query,
		Mode:        mode,
		DocumentIDs: req.DocumentIDs,
		PageSize:    req.TopK,
		Highlight:   req.Highlight,
	})
	if err != nil {
		return apperror.InternalCoded(config.ModuleSearch, c, status.SearchIndexFailed, err)
	}

	return apperror.Success(config.ModuleSearch, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Search completed successfully",
		TrackingID: trackingID,
		Data: fiber.Map{
			"query":   req.Query,
			"results": toRows(results),
		},
	})
}

// HandleRAG answers a question in one response.
func (h *Handler) HandleRAG(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	req, mode, err := h.parseSearchRequest(c)
	if err != nil {
		return apperror.BadRequest(config.ModuleSearch, c, status.InvalidRequestBody, err.Error())
	}

	result, err := h.streamer.Answer(c.Context(), answer.Request{
		Query:       req.Query,
		Mode:        mode,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
	})
	if err != nil {
		return apperror.InternalCoded(config.ModuleSearch, c, status.AnswerFailed, err)
	}

	return apperror.Success(config.ModuleSearch, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Answer generated successfully",
		TrackingID: trackingID,
		Data:       result,
	})
}

// HandleRAGStream answers a question as a server-sent event stream. Each
// event is a JSON line and the stream ends with a [DONE] sentinel. A client
// disconnect cancels the pipeline.
func (h *Handler) HandleRAGStream(c fiber.Ctx) error {
	req, mode, err := h.parseSearchRequest(c)
	if err != nil {
		return apperror.BadRequest(config.ModuleSearch, c, status.InvalidRequestBody, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	streamer := h.streamer
	return c.SendStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := streamer.Stream(ctx, answer.Request{
			Query:       req.Query,
			Mode:        mode,
			DocumentIDs: req.DocumentIDs,
			TopK:        req.TopK,
		})
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Error(err, "search: marshal stream event")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// client went away, stop the pipeline
				return
			}
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		_ = w.Flush()
	})
}
