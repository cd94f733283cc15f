package search

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes registers search and answer routes on the provided router.
func RegisterRoutes(r fiber.Router, h *Handler) {
	g := r.Group("/search")
	g.Get("/all", h.HandleSearchAll)
	g.Post("/", h.HandleSearch)
	g.Post("/rag", h.HandleRAG)
	g.Post("/rag/stream", h.HandleRAGStream)
}
