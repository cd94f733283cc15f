package documents

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes registers document management routes on the provided router.
func RegisterRoutes(r fiber.Router, h *Handler) {
	g := r.Group("/documents")
	g.Post("/", h.HandleUpload)
	g.Get("/", h.HandleList)
	g.Get("/:id", h.HandleGet)
	g.Get("/:id/download", h.HandleDownload)
	g.Get("/:id/url", h.HandlePresignURL)
	g.Delete("/:id", h.HandleDelete)
}
