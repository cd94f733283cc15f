package healthcheck

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"pdfrag/config"
	"pdfrag/internal/database"
	"pdfrag/internal/index"
	"pdfrag/pkg/apperror"
)

type Handler struct {
	idx *index.Client
}

func NewHandler(idx *index.Client) *Handler {
	return &Handler{idx: idx}
}

func (h *Handler) ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

func (h *Handler) DatabaseHealthCheck(c fiber.Ctx) error {
	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	return c.SendString("ok")
}

func (h *Handler) IndexHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.idx.Ping(ctx); err != nil {
		return apperror.InternalError(config.ModuleIndex, c, err)
	}
	return c.SendString("ok")
}
