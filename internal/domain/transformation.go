package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind enumerates the derived assets the pipeline can produce.
type Kind string

const (
	KindBackgroundRemoval Kind = "background_removal"
	KindVirtualTryOn      Kind = "virtual_try_on"
	KindCategorization    Kind = "categorization"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindBackgroundRemoval, KindVirtualTryOn, KindCategorization}
}

// ProviderMode is the closed set of ways a capability can be performed.
type ProviderMode string

const (
	ModeOnDevice    ProviderMode = "on_device"
	ModeQueued      ProviderMode = "queued_remote"
	ModeSynchronous ProviderMode = "synchronous_remote"
	ModePassthrough ProviderMode = "passthrough"
)

// ImageRef points at a photo either on local disk or held in memory. Path is
// kept even after Data is loaded so fallbacks can hand the original back.
type ImageRef struct {
	Path string
	Data []byte
	MIME string
}

// IsZero reports whether the reference carries neither a path nor bytes.
func (r ImageRef) IsZero() bool {
	return strings.TrimSpace(r.Path) == "" && len(r.Data) == 0
}

// Format returns the short image format ("png", "jpeg") derived from the MIME
// type or the path extension.
func (r ImageRef) Format() string {
	mime := strings.ToLower(strings.TrimSpace(r.MIME))
	switch {
	case strings.HasSuffix(mime, "/png"):
		return "png"
	case strings.HasSuffix(mime, "/jpeg"), strings.HasSuffix(mime, "/jpg"):
		return "jpeg"
	case strings.HasSuffix(mime, "/webp"):
		return "webp"
	}
	switch strings.ToLower(filepath.Ext(r.Path)) {
	case ".png":
		return "png"
	case ".webp":
		return "webp"
	default:
		return "jpeg"
	}
}

// Request is created once per facade call and never mutated afterwards.
type Request struct {
	ID        string
	Kind      Kind
	Inputs    []ImageRef
	ColorHint []string
}

// Primary returns the first input; for try-on this is the garment photo.
func (r Request) Primary() ImageRef {
	if len(r.Inputs) == 0 {
		return ImageRef{}
	}
	return r.Inputs[0]
}

// Secondary returns the second input; for try-on this is the person photo.
func (r Request) Secondary() ImageRef {
	if len(r.Inputs) < 2 {
		return ImageRef{}
	}
	return r.Inputs[1]
}

// Outcome tags a Result as a committed success or a safe fallback.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
)

// Result is the normalized outcome returned by the facade for asset kinds.
// On success Location is a newly written local file; on fallback Original is
// handed back unchanged and Reason explains why.
type Result struct {
	RequestID string
	Kind      Kind
	Outcome   Outcome
	Location  string
	Original  ImageRef
	Provider  string
	Reason    Reason
	Detail    string
	Duration  time.Duration
}

// Succeeded reports whether a provider produced a derived asset.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// AssetPath is the path callers should use downstream: the derived asset on
// success, the original photo otherwise.
func (r Result) AssetPath() string {
	if r.Succeeded() {
		return r.Location
	}
	return r.Original.Path
}

// Categorization carries category and attribute tags for a garment photo.
// Every attribute is list-valued regardless of the shape the classifier used.
type Categorization struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Colors      []string `json:"colors"`
	Seasons     []string `json:"seasons"`
	Occasions   []string `json:"occasions"`
	Tags        []string `json:"tags"`
}

// CategorizationResult wraps Categorization with the chain outcome.
type CategorizationResult struct {
	RequestID string
	Outcome   Outcome
	Provider  string
	Reason    Reason
	Detail    string
	Duration  time.Duration
	Categorization
}

// TransformationRecord is one ledger row describing a finished facade call.
type TransformationRecord struct {
	ID        string
	RequestID string
	Kind      Kind
	Provider  string
	Outcome   Outcome
	Reason    Reason
	InputRef  string
	OutputRef string
	Duration  time.Duration
	CreatedAt time.Time
}
