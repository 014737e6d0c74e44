// Package api serves the read-only HTTP endpoints: health, execution history
// and artifact retrieval. The interactive surface lives on the websocket.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alger-org/alger/internal/build"
	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/models"
)

type API struct {
	cfg   *config.Config
	store models.Store
}

func New(cfg *config.Config, store models.Store) *API {
	return &API{cfg: cfg, store: store}
}

// ConfigureRoutes mounts the API handlers on the given router.
func (a *API) ConfigureRoutes(r chi.Router) {
	r.Get("/health", a.health)
	r.Get("/executions", a.listExecutions)
	r.Get("/executions/{executionID}", a.getExecution)
	r.Get("/executions/{executionID}/files", a.listFiles)
	r.Get("/executions/{executionID}/files/*", a.serveFile)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": build.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
