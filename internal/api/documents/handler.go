package documents

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"pdfrag/config"
	"pdfrag/internal/core/ingest"
	"pdfrag/internal/storage"
	"pdfrag/pkg/apperror"
	"pdfrag/pkg/apperror/status"
)

const defaultPresignExpiry = 15 * time.Minute

type Handler struct {
	ingest  *ingest.Service
	catalog ingest.Catalog
	store   *storage.Service
}

func NewHandler(ingestSvc *ingest.Service, catalog ingest.Catalog, store *storage.Service) *Handler {
	return &Handler{ingest: ingestSvc, catalog: catalog, store: store}
}

// HandleUpload ingests one PDF from a multipart form.
func (h *Handler) HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.BadRequest(config.ModuleDocuments, c, status.MissingParams, "file is required")
	}
	if fh.Size == 0 {
		return apperror.BadRequest(config.ModuleDocuments, c, status.MissingParams, "empty file")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return apperror.BadRequest(config.ModuleDocuments, c, status.UnsupportedFile, "only PDF files are supported")
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleDocuments, c, status.InvalidRequestBody, "cannot open file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apperror.InternalCoded(config.ModuleDocuments, c, status.DocumentStoreFailed, fmt.Errorf("read upload: %w", err))
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	doc, err := h.ingest.ProcessUpload(c.Context(), ingest.UploadInput{
		Filename:    fh.Filename,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return apperror.InternalCoded(config.ModuleDocuments, c, status.DocumentIngestFailed, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Document ingested successfully",
		TrackingID: trackingID,
		Data:       doc,
	})
}

// HandleList returns every catalog entry, newest first.
func (h *Handler) HandleList(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	docs, err := h.catalog.List(c.Context())
	if err != nil {
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Documents listed successfully",
		TrackingID: trackingID,
		Data:       docs,
	})
}

// HandleGet returns one catalog entry.
func (h *Handler) HandleGet(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")
	id := c.Params("id")

	doc, err := h.catalog.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleDocuments, c, "document not found")
		}
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Document fetched successfully",
		TrackingID: trackingID,
		Data:       doc,
	})
}

// HandleDownload streams the stored file back to the client.
func (h *Handler) HandleDownload(c fiber.Ctx) error {
	id := c.Params("id")

	data, contentType, filename, err := h.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.NotFound(config.ModuleDocuments, c, "document not found")
		}
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	if filename != "" {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	}
	return c.Send(data)
}

// HandlePresignURL returns a temporary download URL for the stored file.
func (h *Handler) HandlePresignURL(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")
	id := c.Params("id")

	url, err := h.store.PresignGet(c.Context(), id, defaultPresignExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.NotFound(config.ModuleDocuments, c, "document not found")
		}
		return apperror.InternalError(config.ModuleDocuments, c, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Download URL created",
		TrackingID: trackingID,
		Data:       fiber.Map{"url": url, "expiresIn": int(defaultPresignExpiry.Seconds())},
	})
}

// HandleDelete removes a document from the index, storage and catalog.
func (h *Handler) HandleDelete(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")
	id := c.Params("id")

	if err := h.ingest.Delete(c.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleDocuments, c, "document not found")
		}
		return apperror.InternalCoded(config.ModuleDocuments, c, status.DocumentDeleteFailed, err)
	}

	return apperror.Success(config.ModuleDocuments, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "Document deleted successfully",
		TrackingID: trackingID,
		Data:       fiber.Map{"id": id},
	})
}
