// Package tagging calls the synchronous remote garment classifier.
package tagging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"closet/internal/domain"
	"closet/internal/infra"
)

// ProviderName identifies this provider in results, logs and the ledger.
const ProviderName = "remote-tagging"

var authRequiredPattern = regexp.MustCompile(`(?i)authentication is required`)

// Options configures the classifier client.
type Options struct {
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Classifier posts a photo with its detected colors and returns normalized
// category and attribute tags merged with the local colors.
type Classifier struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
}

type classifyRequest struct {
	Image          string   `json:"image"`
	ImageFormat    string   `json:"imageFormat"`
	DetectedColors []string `json:"detectedColors"`
}

// NewClassifier constructs a client with sane defaults.
func NewClassifier(opts Options) *Classifier {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Classifier{
		endpoint:   strings.TrimSpace(opts.Endpoint),
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// Name returns the provider identifier.
func (c *Classifier) Name() string {
	return ProviderName
}

// Configured reports whether an endpoint is set.
func (c *Classifier) Configured() bool {
	return c.endpoint != ""
}

// HasCredentials reports whether the classifier can be called. The bearer
// token is optional, so only the endpoint matters.
func (c *Classifier) HasCredentials() bool {
	return c.Configured()
}

// Attempt classifies req.Primary(); req.ColorHint carries the local palette.
func (c *Classifier) Attempt(ctx context.Context, req domain.Request) (domain.Categorization, error) {
	if !c.Configured() {
		return domain.Categorization{}, domain.NewProviderError(ProviderName, domain.ErrConfigurationMissing, "TAGGING_API_URL is not set")
	}
	photo := req.Primary()
	if len(photo.Data) == 0 {
		return domain.Categorization{}, domain.NewProviderError(ProviderName, domain.ErrProviderFailure, "photo bytes not loaded")
	}
	if err := ctx.Err(); err != nil {
		return domain.Categorization{}, domain.CancellationCause(err)
	}

	hint := req.ColorHint
	if hint == nil {
		hint = []string{}
	}
	body, err := json.Marshal(classifyRequest{
		Image:          base64.StdEncoding.EncodeToString(photo.Data),
		ImageFormat:    photo.Format(),
		DetectedColors: hint,
	})
	if err != nil {
		return domain.Categorization{}, fmt.Errorf("tagging: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Categorization{}, &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Categorization{}, domain.CancellationCause(ctxErr)
		}
		return domain.Categorization{}, &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Categorization{}, domain.CancellationCause(ctxErr)
		}
		return domain.Categorization{}, &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "read response", Err: err}
	}
	if resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(raw))
		class := domain.ErrProviderFailure
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || authRequiredPattern.MatchString(text) {
			class = domain.ErrAuthRejected
			c.logger.Warn().Int("status", resp.StatusCode).Msg("tagging: credential rejected")
		}
		return domain.Categorization{}, &domain.ProviderError{Provider: ProviderName, Class: class, Status: resp.StatusCode, Body: text}
	}

	var decoded remoteResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.Categorization{}, &domain.ProviderError{Provider: ProviderName, Class: domain.ErrProviderFailure, Message: "decode response", Err: err}
	}
	result := Merge(req.ColorHint, normalize(decoded))
	c.logger.Debug().
		Str("category", result.Category).
		Strs("colors", result.Colors).
		Msg("tagging: classified")
	return result, nil
}
