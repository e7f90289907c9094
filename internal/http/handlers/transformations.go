package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"closet/internal/domain"
)

type cutoutRequest struct {
	Photo photoInput `json:"photo"`
}

type tryOnRequest struct {
	Garment photoInput `json:"garment"`
	Person  photoInput `json:"person"`
}

type resultResponse struct {
	RequestID  string         `json:"request_id"`
	Kind       domain.Kind    `json:"kind"`
	Outcome    domain.Outcome `json:"outcome"`
	Path       string         `json:"path"`
	Original   string         `json:"original,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Reason     domain.Reason  `json:"reason,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

type categorizationResponse struct {
	RequestID  string         `json:"request_id"`
	Outcome    domain.Outcome `json:"outcome"`
	Provider   string         `json:"provider,omitempty"`
	Reason     domain.Reason  `json:"reason,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	domain.Categorization
}

type recordResponse struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id"`
	Kind       domain.Kind    `json:"kind"`
	Provider   string         `json:"provider"`
	Outcome    domain.Outcome `json:"outcome"`
	Reason     domain.Reason  `json:"reason,omitempty"`
	InputRef   string         `json:"input_ref"`
	OutputRef  string         `json:"output_ref,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toResultResponse(res domain.Result) resultResponse {
	return resultResponse{
		RequestID:  res.RequestID,
		Kind:       res.Kind,
		Outcome:    res.Outcome,
		Path:       res.AssetPath(),
		Original:   res.Original.Path,
		Provider:   res.Provider,
		Reason:     res.Reason,
		Detail:     res.Detail,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// decode reads a JSON body capped at twice the upload limit, since base64
// inflates the payload.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := int64(32 << 20)
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		limit = a.Config.MaxUploadBytes * 2
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "payload exceeds upload limit")
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

func (a *App) Capabilities(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"kinds": a.Pipeline.Capabilities()})
}

func (a *App) Cutout(w http.ResponseWriter, r *http.Request) {
	var req cutoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	photo, err := a.resolve(r.Context(), req.Photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	res, err := a.Pipeline.RemoveBackground(r.Context(), photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResultResponse(res))
}

func (a *App) TryOn(w http.ResponseWriter, r *http.Request) {
	var req tryOnRequest
	if !a.decode(w, r, &req) {
		return
	}
	garment, err := a.resolve(r.Context(), req.Garment)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	person, err := a.resolve(r.Context(), req.Person)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	res, err := a.Pipeline.VirtualTryOn(r.Context(), garment, person)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResultResponse(res))
}

func (a *App) Categorize(w http.ResponseWriter, r *http.Request) {
	var req cutoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	photo, err := a.resolve(r.Context(), req.Photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	res, err := a.Pipeline.Categorize(r.Context(), photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, categorizationResponse{
		RequestID:      res.RequestID,
		Outcome:        res.Outcome,
		Provider:       res.Provider,
		Reason:         res.Reason,
		Detail:         res.Detail,
		DurationMS:     res.Duration.Milliseconds(),
		Categorization: res.Categorization,
	})
}

func (a *App) Palette(w http.ResponseWriter, r *http.Request) {
	var req cutoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	photo, err := a.resolve(r.Context(), req.Photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	colors, err := a.Pipeline.ExtractColors(r.Context(), photo)
	if err != nil {
		a.pipelineError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"colors": colors})
}

func (a *App) Transformations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := a.Pipeline.RecentTransformations(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list transformations")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list transformations")
		return
	}
	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, recordResponse{
			ID:         rec.ID,
			RequestID:  rec.RequestID,
			Kind:       rec.Kind,
			Provider:   rec.Provider,
			Outcome:    rec.Outcome,
			Reason:     rec.Reason,
			InputRef:   rec.InputRef,
			OutputRef:  rec.OutputRef,
			DurationMS: rec.Duration.Milliseconds(),
			CreatedAt:  rec.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
