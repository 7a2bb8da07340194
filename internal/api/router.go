package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/voxform/voxform/internal/metrics"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)        // zap access log and request metrics
	r.Use(middleware.Recoverer) // Recover from panics
	r.Use(middleware.StripSlashes)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Records
		r.Post("/records", apiHandler.CreateRecordHandler)
		r.Get("/records", apiHandler.ListRecordsHandler)
		r.Delete("/records", apiHandler.DeleteRecordHandler)
		r.Get("/records/export", apiHandler.ExportRecordsHandler)

		r.Post("/extract", apiHandler.ExtractHandler)
		r.Post("/transcribe", apiHandler.TranscribeHandler)

		// Scripts and the live conversation
		r.Get("/scripts", apiHandler.ListScriptsHandler)
		r.Get("/scripts/{documentType}", apiHandler.GetScriptHandler)
		r.Get("/conversations/ws", apiHandler.ConversationHandler)
	})

	return r
}
