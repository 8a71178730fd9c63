package handler

import (
	"github.com/gofiber/fiber/v2"

	"htmlvault/internal/service"
	"htmlvault/internal/storage"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// The readiness check at /health pings every dependency in health.
// A nil store leaves /uploads unregistered.
func RegisterRoutes(app *fiber.App, docSvc service.DocumentService, store storage.Storage, health ...Pinger) {
	app.Get("/health", HealthCheck(health...))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/", UploadDocument(docSvc))
	docs.Post("/bulk", UploadBulk(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Put("/:id", UpdateDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
	docs.Get("/:id/markdown", DocumentMarkdown(docSvc))

	search := app.Group("/search")
	search.Get("/", SearchDocuments(docSvc))
	search.Get("/suggestions", SearchSuggestions(docSvc))
	search.Get("/stats", SearchStats(docSvc))

	if store != nil {
		app.Get("/uploads/:name", ServeUpload(store))
	}
}
