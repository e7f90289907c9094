package handlers

import (
	"net/http"
	"os"
)

// Health reports ok while the asset store root is reachable; every
// transformation needs it to read inputs or write results.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Store != nil {
		if _, err := os.Stat(a.Store.BasePath()); err != nil {
			a.Logger.Error().Err(err).Msg("health: storage unavailable")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "storage": "unavailable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
