// Package queue implements the submit, poll and fetch cycle shared by the
// remote cutout and try-on services. Provider specifics live in a Dialect.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"closet/internal/domain"
	"closet/internal/infra"
)

const maxBodyBytes = 32 << 20

var authRequiredPattern = regexp.MustCompile(`(?i)authentication is required`)

// Dialect adapts one remote job service to the generic polling loop.
type Dialect interface {
	// DecodeSubmit turns the submission response into a job.
	DecodeSubmit(body []byte) (*Job, error)
	// StatusURL returns the URL polled for job.
	StatusURL(job *Job) string
	// DecodeStatus updates job.Status, Message, ResultURL or AssetURL from a
	// status response.
	DecodeStatus(body []byte, job *Job) error
	// DecodeResult extracts the output asset URL from the result payload.
	DecodeResult(body []byte) (string, error)
}

// Authorizer returns the Authorization header value for one outbound call.
// It runs before every request so signed tokens are never reused.
type Authorizer func() (string, error)

// Options configures the queued-job client.
type Options struct {
	Name           string
	HTTPClient     *http.Client
	Authorize      Authorizer
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	Logger         *infra.Logger
}

// Client drives jobs through Submitted → Processing → terminal.
type Client struct {
	name         string
	dialect      Dialect
	httpClient   *http.Client
	authorize    Authorizer
	pollInterval time.Duration
	maxAttempts  int
	logger       *infra.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(dialect Dialect, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 30
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "queue"
	}
	return &Client{
		name:         name,
		dialect:      dialect,
		httpClient:   httpClient,
		authorize:    opts.Authorize,
		pollInterval: interval,
		maxAttempts:  attempts,
		logger:       infra.LoggerOrDiscard(opts.Logger),
	}
}

// Name returns the provider name used in errors and logs.
func (c *Client) Name() string {
	return c.name
}

// Run submits payload to endpoint and polls the job to completion, returning
// the output asset URL.
func (c *Client) Run(ctx context.Context, endpoint string, payload any) (*Job, string, error) {
	job, err := c.Submit(ctx, endpoint, payload)
	if err != nil {
		return nil, "", err
	}
	assetURL, err := c.Poll(ctx, job)
	return job, assetURL, err
}

// Submit posts payload and returns the accepted job.
func (c *Client) Submit(ctx context.Context, endpoint string, payload any) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.CancellationCause(err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	job, err := c.dialect.DecodeSubmit(raw)
	if err != nil {
		return nil, c.wrap(err, "decode submit response")
	}
	if strings.TrimSpace(job.TaskID) == "" {
		return nil, domain.NewProviderError(c.name, domain.ErrProviderFailure, "submit response carried no task id")
	}
	if job.Status == StatusUnknown {
		job.Status = StatusSubmitted
	}
	job.StartedAt = time.Now()
	c.logger.Debug().Str("provider", c.name).Str("task_id", job.TaskID).Msg("job submitted")
	return job, nil
}

// Poll waits a fixed interval before each status query until the job reaches
// a terminal status or the attempt cap is hit. Cancelling ctx stops the loop
// immediately with domain.ErrCallerCancelled.
func (c *Client) Poll(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", errors.New(c.name + ": job is required")
	}
	timer := time.NewTimer(c.pollInterval)
	timer.Stop()
	defer timer.Stop()

	for job.Attempt < c.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", domain.CancellationCause(err)
		}
		timer.Reset(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", domain.CancellationCause(ctx.Err())
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return "", domain.CancellationCause(err)
		}

		job.Attempt++
		raw, err := c.do(ctx, http.MethodGet, c.dialect.StatusURL(job), nil)
		if err != nil {
			return "", err
		}
		if err := c.dialect.DecodeStatus(raw, job); err != nil {
			return "", c.wrap(err, "decode status response")
		}
		c.logger.Debug().
			Str("provider", c.name).
			Str("task_id", job.TaskID).
			Int("attempt", job.Attempt).
			Str("status", job.Status.String()).
			Msg("job polled")

		switch job.Status {
		case StatusSubmitted, StatusProcessing:
			continue
		case StatusSucceeded:
			return c.fetchResult(ctx, job)
		case StatusFailed, StatusCancelled:
			msg := strings.TrimSpace(job.Message)
			if msg == "" {
				msg = "job " + job.Status.String()
			}
			return "", domain.NewProviderError(c.name, domain.ErrProviderFailure, msg)
		default:
			return "", domain.NewProviderError(c.name, domain.ErrProviderFailure, "unrecognized job status")
		}
	}
	return "", domain.NewProviderError(c.name, domain.ErrTimeout,
		fmt.Sprintf("job %s not finished after %d polls", job.TaskID, c.maxAttempts))
}

func (c *Client) fetchResult(ctx context.Context, job *Job) (string, error) {
	if u := strings.TrimSpace(job.AssetURL); u != "" {
		return u, nil
	}
	if strings.TrimSpace(job.ResultURL) == "" {
		return "", domain.NewProviderError(c.name, domain.ErrProviderFailure, "succeeded job has no result reference")
	}
	if err := ctx.Err(); err != nil {
		return "", domain.CancellationCause(err)
	}
	raw, err := c.do(ctx, http.MethodGet, job.ResultURL, nil)
	if err != nil {
		return "", err
	}
	assetURL, err := c.dialect.DecodeResult(raw)
	if err != nil {
		return "", c.wrap(err, "decode result response")
	}
	if strings.TrimSpace(assetURL) == "" {
		return "", domain.NewProviderError(c.name, domain.ErrProviderFailure, "result carried no asset url")
	}
	job.AssetURL = assetURL
	return assetURL, nil
}

// Download fetches a produced asset. Asset URLs are pre-signed, so no
// Authorization header is sent.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(assetURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", domain.NewProviderError(c.name, domain.ErrProviderFailure, "invalid asset url: "+assetURL)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", domain.CancellationCause(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: build download request: %w", c.name, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", c.transportError(ctx, err)
	}
	if resp.StatusCode >= 300 {
		return nil, "", &domain.ProviderError{
			Provider: c.name,
			Class:    domain.ErrProviderFailure,
			Status:   resp.StatusCode,
			Message:  "download failed",
		}
	}
	if len(data) == 0 {
		return nil, "", domain.NewProviderError(c.name, domain.ErrProviderFailure, "downloaded asset is empty")
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		value, err := c.authorize()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(raw))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || authRequiredPattern.MatchString(text) {
			c.logger.Warn().
				Str("provider", c.name).
				Int("status", resp.StatusCode).
				Msg("credential rejected by remote service")
			return nil, &domain.ProviderError{
				Provider: c.name,
				Class:    domain.ErrAuthRejected,
				Status:   resp.StatusCode,
				Body:     text,
			}
		}
		return nil, &domain.ProviderError{
			Provider: c.name,
			Class:    domain.ErrProviderFailure,
			Status:   resp.StatusCode,
			Body:     text,
		}
	}
	return raw, nil
}

// transportError keeps caller cancellation distinguishable from network faults.
func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.CancellationCause(ctxErr)
	}
	return &domain.ProviderError{Provider: c.name, Class: domain.ErrProviderFailure, Message: "http request failed", Err: err}
}

func (c *Client) wrap(err error, action string) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.ProviderError{Provider: c.name, Class: domain.ErrProviderFailure, Message: action, Err: err}
}
