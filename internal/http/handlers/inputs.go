package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"closet/internal/domain"
	"closet/internal/storage"
)

// photoInput names a photo either by a path the server can read or by inline
// base64 bytes (optionally as a data URI).
type photoInput struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
	MIME        string `json:"mime"`
}

func (p photoInput) empty() bool {
	return strings.TrimSpace(p.Path) == "" && strings.TrimSpace(p.ImageBase64) == ""
}

// resolve turns an input into an ImageRef. Inline uploads are persisted under
// uploads/ first so fallbacks can hand back a real path.
func (a *App) resolve(ctx context.Context, in photoInput) (domain.ImageRef, error) {
	if in.empty() {
		return domain.ImageRef{}, nil
	}
	if strings.TrimSpace(in.ImageBase64) == "" {
		return a.resolvePath(in)
	}

	raw, mime := splitDataURI(strings.TrimSpace(in.ImageBase64))
	if mime == "" {
		mime = strings.TrimSpace(in.MIME)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("%w: image_base64 is not valid base64", domain.ErrInvalidRequest)
	}
	if len(data) == 0 {
		return domain.ImageRef{}, fmt.Errorf("%w: image_base64 is empty", domain.ErrInvalidRequest)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if a.Store == nil {
		return domain.ImageRef{Data: data, MIME: mime}, nil
	}
	ext := storage.ExtensionForMIME(mime)
	if ext == "" {
		ext = ".bin"
	}
	key, err := a.Store.Write(ctx, "uploads/"+uuid.NewString()+ext, data)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("save upload: %w", err)
	}
	path, err := a.Store.Path(key)
	if err != nil {
		return domain.ImageRef{}, err
	}
	return domain.ImageRef{Path: path, Data: data, MIME: mime}, nil
}

// resolvePath accepts only keys relative to the store root; clients never get
// to name arbitrary files on the server.
func (a *App) resolvePath(in photoInput) (domain.ImageRef, error) {
	if a.Store == nil {
		return domain.ImageRef{}, fmt.Errorf("%w: path inputs need a configured store", domain.ErrInvalidRequest)
	}
	key, err := a.Store.Key(in.Path)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("%w: path must be relative to the storage root", domain.ErrInvalidRequest)
	}
	path, err := a.Store.Path(key)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("%w: path must be relative to the storage root", domain.ErrInvalidRequest)
	}
	return domain.ImageRef{Path: path, MIME: in.MIME}, nil
}

func splitDataURI(s string) (payload, mime string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, body, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	header = strings.TrimPrefix(header, "data:")
	header = strings.TrimSuffix(header, ";base64")
	return body, header
}
