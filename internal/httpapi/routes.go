package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/history"
	"github.com/DoyleJ11/tapbattle/internal/hub"
)

func SetupRoutes(h *hub.Hub, store history.Store, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("httpapi")

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/sessions/{roomID}", GetSession(h))

	r.Route("/history", func(r chi.Router) {
		r.Get("/", ListHistory(store, log))
		r.Delete("/", ClearHistory(store, log))
		r.Delete("/{id}", DeleteRecord(store, log))
		r.Get("/players/{name}", PlayerHistory(store, log))
		r.Get("/players/{name}/wins", PlayerWins(store, log))
	})
	return r
}
