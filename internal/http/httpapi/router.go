package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"closet/internal/http/handlers"
	"closet/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	rateLimit := 30
	if app.Config != nil {
		origins = app.Config.CORSOrigins
		if app.Config.RateLimitPerMin > 0 {
			rateLimit = app.Config.RateLimitPerMin
		}
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(origins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/capabilities", app.Capabilities)
	r.Get("/v1/transformations", app.Transformations)
	r.Post("/v1/palette", app.Palette)

	// Provider-backed routes spend remote credits; keep them behind the limiter.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimit, time.Minute))
		r.Post("/v1/cutouts", app.Cutout)
		r.Post("/v1/try-on", app.TryOn)
		r.Post("/v1/categorize", app.Categorize)
	})

	return r
}
