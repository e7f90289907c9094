// Package fal removes photo backgrounds with the fal.ai BiRefNet queue API.
package fal

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
const ProviderName = "fal-birefnet"

// Options configures the cutout provider.
type Options struct {
	APIKey         string
	Endpoint       string
	Model          string
	Resolution     string
	PollInterval   time.Duration
	MaxPolls       int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Store          domain.AssetStore
	Logger         *infra.Logger
}

// Cutout submits a photo, polls until the matte is ready and downloads the
// transparent PNG into the asset store.
type Cutout struct {
	apiKey     string
	endpoint   string
	model      string
	resolution string
	client     *queue.Client
	store      domain.AssetStore
	logger     *infra.Logger
}

type cutoutRequest struct {
	ImageURL            string `json:"image_url"`
	Model               string `json:"model"`
	OperatingResolution string `json:"operating_resolution"`
	OutputFormat        string `json:"output_format"`
	RefineForeground    bool   `json:"refine_foreground"`
}

// NewCutout constructs the provider with defaults matching the public API.
func NewCutout(opts Options) *Cutout {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = "https://queue.fal.run/fal-ai/birefnet/v2"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "General Use (Light)"
	}
	resolution := strings.TrimSpace(opts.Resolution)
	if resolution == "" {
		resolution = "1024x1024"
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 300
	}
	c := &Cutout{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoint:   endpoint,
		model:      model,
		resolution: resolution,
		store:      opts.Store,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
	c.client = queue.NewClient(dialect{}, queue.Options{
		Name:           ProviderName,
		HTTPClient:     opts.HTTPClient,
		Authorize:      c.authorize,
		PollInterval:   opts.PollInterval,
		MaxAttempts:    maxPolls,
		RequestTimeout: opts.RequestTimeout,
		Logger:         c.logger,
	})
	return c
}

// Name returns the provider identifier.
func (c *Cutout) Name() string {
	return ProviderName
}

// HasCredentials reports whether an API key is configured.
func (c *Cutout) HasCredentials() bool {
	return c.apiKey != ""
}

// Attempt runs one background removal for req.Primary() and returns the path
// of the new PNG.
func (c *Cutout) Attempt(ctx context.Context, req domain.Request) (string, error) {
	if !c.HasCredentials() {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "FAL_API_KEY is not set")
	}
	if c.store == nil {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "no asset store")
	}
	photo := req.Primary()
	if len(photo.Data) == 0 {
		return "", domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "photo bytes not loaded")
	}

	payload := cutoutRequest{
		ImageURL:            dataURI(photo),
		Model:               c.model,
		OperatingResolution: c.resolution,
		OutputFormat:        "png",
		RefineForeground:    true,
	}
	job, assetURL, err := c.client.Run(ctx, c.endpoint, payload)
	if err != nil {
		return "", err
	}
	data, mime, err := c.client.Download(ctx, assetURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	path, err := c.store.WriteUnique(ctx, "cutouts", "background-removed", "", mime, data)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "store cutout", Err: err}
	}
	c.logger.Debug().
		Str("task_id", job.TaskID).
		Int("polls", job.Attempt).
		Str("path", path).
		Msg("fal: cutout stored")
	return path, nil
}

func (c *Cutout) authorize() (string, error) {
	if c.apiKey == "" {
		return "", domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "FAL_API_KEY is not set")
	}
	return "Key " + c.apiKey, nil
}

func dataURI(photo domain.ImageRef) string {
	return "data:image/" + photo.Format() + ";base64," + base64.StdEncoding.EncodeToString(photo.Data)
}
