package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/pipeline"
	"closet/internal/storage"
)

// StatusClientClosedRequest is written when the caller went away before the
// pipeline finished.
const StatusClientClosedRequest = 499

// App carries the dependencies shared by every handler.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Pipeline *pipeline.Service
	Store    *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// pipelineError maps the two errors the facade may return onto HTTP statuses.
func (a *App) pipelineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrCallerCancelled):
		a.Logger.Info().Str("path", r.URL.Path).Msg("request cancelled by client")
		w.WriteHeader(StatusClientClosedRequest)
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("pipeline failed")
		a.error(w, http.StatusInternalServerError, "internal", "transformation failed")
	}
}
