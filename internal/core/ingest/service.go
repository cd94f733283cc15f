package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/core/chunker"
	"pdfrag/internal/database"
	"pdfrag/internal/database/model"
	"pdfrag/internal/index"
	"pdfrag/pkg/logger"
)

// Store keeps the original file bytes.
type Store interface {
	Put(ctx context.Context, id string, data []byte, contentType, filename string) error
	Delete(ctx context.Context, id string) error
}

// Indexer owns the searchable chunks of a document.
type Indexer interface {
	BulkUpsert(ctx context.Context, docs []index.Document) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Embedder vectorizes chunk texts in batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Catalog is the document metadata store.
type Catalog interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// GormCatalog backs Catalog with the shared database.
type GormCatalog struct{}

func (GormCatalog) Create(ctx context.Context, doc *model.Document) error {
	return database.CreateEntity(ctx, doc)
}

func (GormCatalog) Get(ctx context.Context, id string) (*model.Document, error) {
	return database.GetEntityByID[model.Document](ctx, id)
}

func (GormCatalog) List(ctx context.Context) ([]model.Document, error) {
	return database.ListEntities[model.Document](ctx, "uploaded_at DESC")
}

func (GormCatalog) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return database.UpdateEntityByID[model.Document](ctx, id, updates)
}

func (GormCatalog) Delete(ctx context.Context, id string) error {
	return database.DeleteEntityByID[model.Document](ctx, id)
}

// Service runs the ingest pipeline: store the file, extract page text, chunk,
// embed and index, with the catalog row tracking progress.
type Service struct {
	store    Store
	indexer  Indexer
	embedder Embedder
	catalog  Catalog
	params   chunker.Params
	extract  func(data []byte) ([]string, error)
}

func NewService(store Store, indexer Indexer, embedder Embedder, catalog Catalog, params chunker.Params) (*Service, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		indexer:  indexer,
		embedder: embedder,
		catalog:  catalog,
		params:   params,
		extract:  ExtractPages,
	}, nil
}

type UploadInput struct {
	Filename    string
	Title       string
	Description string
	ContentType string
	Data        []byte
}

// ProcessUpload ingests one uploaded PDF end to end. On failure the catalog
// row is left in status failed with the cause recorded, so a client can see
// what happened to its upload.
func (s *Service) ProcessUpload(ctx context.Context, in UploadInput) (*model.Document, error) {
	sum := sha256.Sum256(in.Data)
	title := in.Title
	if title == "" {
		title = in.Filename
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		Filename:    in.Filename,
		Title:       title,
		Description: in.Description,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		SHA256:      hex.EncodeToString(sum[:]),
		Status:      model.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.catalog.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("ingest: create catalog row: %w", err)
	}

	if err := s.store.Put(ctx, doc.ID, in.Data, in.ContentType, in.Filename); err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("ingest: store file: %w", err))
	}

	if err := s.catalog.Update(ctx, doc.ID, map[string]interface{}{"status": model.StatusProcessing}); err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("ingest: mark processing: %w", err))
	}
	doc.Status = model.StatusProcessing

	pages, err := s.extract(in.Data)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	chunks := make([]chunker.Chunk, 0, len(pages))
	for i, page := range pages {
		chunks = append(chunks, chunker.Split(page, doc.ID, i+1, s.params)...)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, s.fail(ctx, doc, fmt.Errorf("ingest: embed chunks: %w", err))
		}

		now := time.Now().UTC()
		rows := make([]index.Document, len(chunks))
		for i, c := range chunks {
			rows[i] = index.Document{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Filename:   in.Filename,
				PageNumber: c.PageNumber,
				Text:       c.Text,
				Embedding:  vectors[i],
				IndexedAt:  now,
			}
		}
		if err := s.indexer.BulkUpsert(ctx, rows); err != nil {
			return nil, s.fail(ctx, doc, err)
		}
	}

	updates := map[string]interface{}{
		"status":      model.StatusReady,
		"page_count":  len(pages),
		"chunk_count": len(chunks),
	}
	if err := s.catalog.Update(ctx, doc.ID, updates); err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("ingest: mark ready: %w", err))
	}
	doc.Status = model.StatusReady
	doc.PageCount = len(pages)
	doc.ChunkCount = len(chunks)

	logger.Info("ingest: document %s ready, %d pages, %d chunks", doc.ID, len(pages), len(chunks))
	return doc, nil
}

func (s *Service) fail(ctx context.Context, doc *model.Document, cause error) error {
	logger.Error(cause, "ingest: document %s failed", doc.ID)
	updates := map[string]interface{}{
		"status": model.StatusFailed,
		"error":  cause.Error(),
	}
	if err := s.catalog.Update(ctx, doc.ID, updates); err != nil {
		logger.Error(err, "ingest: could not mark document %s failed", doc.ID)
	}
	doc.Status = model.StatusFailed
	return cause
}

// Delete removes a document everywhere: chunks first so stale results cannot
// cite a file that is already gone, then the stored file, then the catalog
// row.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return err
	}
	if err := s.indexer.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("ingest: delete catalog row: %w", err)
	}
	logger.Info("ingest: document %s deleted", id)
	return nil
}
