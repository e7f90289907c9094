// Package kling composites a garment onto a person photo with the Kling
// Kolors virtual try-on API.
package kling

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/providers/queue"
)

// ProviderName identifies this provider in results, logs and the ledger.
const ProviderName = "kling-kolors"

// Options configures the try-on provider.
type Options struct {
	AccessKey      string
	SecretKey      string
	BaseURL        string
	Model          string
	PollInterval   time.Duration
	MaxPolls       int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Store          domain.AssetStore
	Logger         *infra.Logger
}

// TryOn submits the garment and person photos, polls the task and stores the
// composite.
type TryOn struct {
	issuer   *Issuer
	endpoint string
	model    string
	client   *queue.Client
	store    domain.AssetStore
	logger   *infra.Logger
}

type tryOnRequest struct {
	ModelName  string `json:"model_name"`
	HumanImage string `json:"human_image"`
	ClothImage string `json:"cloth_image"`
}

// NewTryOn constructs the provider.
func NewTryOn(opts Options) *TryOn {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.klingai.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "kolors-virtual-try-on-v1"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}
	t := &TryOn{
		issuer:   NewIssuer(opts.AccessKey, opts.SecretKey),
		endpoint: baseURL + "/v1/images/kolors-virtual-try-on",
		model:    model,
		store:    opts.Store,
		logger:   infra.LoggerOrDiscard(opts.Logger),
	}
	t.client = queue.NewClient(dialect{endpoint: t.endpoint}, queue.Options{
		Name:           ProviderName,
		HTTPClient:     opts.HTTPClient,
		Authorize:      t.issuer.authorize,
		PollInterval:   interval,
		MaxAttempts:    maxPolls,
		RequestTimeout: opts.RequestTimeout,
		Logger:         t.logger,
	})
	return t
}

// Name returns the provider identifier.
func (t *TryOn) Name() string {
	return ProviderName
}

// HasCredentials reports whether the issuer can sign tokens.
func (t *TryOn) HasCredentials() bool {
	return t.issuer.Configured()
}

// Attempt composites req.Primary() (garment) onto req.Secondary() (person).
func (t *TryOn) Attempt(ctx context.Context, req domain.Request) (string, error) {
	if !t.HasCredentials() {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "KLING_ACCESS_KEY and KLING_SECRET_KEY are required")
	}
	if t.store == nil {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "no asset store")
	}
	garment, person := req.Primary(), req.Secondary()
	if len(garment.Data) == 0 || len(person.Data) == 0 {
		return "", domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "photo bytes not loaded")
	}

	payload := tryOnRequest{
		ModelName:  t.model,
		HumanImage: base64.StdEncoding.EncodeToString(person.Data),
		ClothImage: base64.StdEncoding.EncodeToString(garment.Data),
	}
	job, assetURL, err := t.client.Run(ctx, t.endpoint, payload)
	if err != nil {
		return "", err
	}
	data, mime, err := t.client.Download(ctx, assetURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	path, err := t.store.WriteUnique(ctx, "try-on", "try-on", job.TaskID, mime, data)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "store composite", Err: err}
	}
	t.logger.Debug().
		Str("task_id", job.TaskID).
		Int("polls", job.Attempt).
		Str("path", path).
		Msg("kling: composite stored")
	return path, nil
}
