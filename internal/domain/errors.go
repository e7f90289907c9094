package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// Soft failures: the chain moves on without surfacing anything.
	ErrConfigurationMissing  = errors.New("configuration missing")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrAuthRejected          = errors.New("authentication rejected")
	ErrDisabled              = errors.New("disabled by configuration")

	// Hard failures: still degradable, but genuine errors worth logging.
	ErrProviderFailure = errors.New("provider failure")
	ErrTimeout         = errors.New("provider timed out")
	ErrDecode          = errors.New("image decode failed")

	// ErrCallerCancelled is the only error that escapes the facade besides
	// ErrInvalidRequest.
	ErrCallerCancelled = errors.New("cancelled by caller")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Reason is the low-cardinality explanation attached to a fallback result.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonConfigurationMissing  Reason = "configuration_missing"
	ReasonCapabilityUnavailable Reason = "capability_unavailable"
	ReasonAuthRejected          Reason = "auth_rejected"
	ReasonProviderFailure       Reason = "provider_failure"
	ReasonTimeout               Reason = "timeout"
	ReasonDisabled              Reason = "disabled"
	ReasonDecode                Reason = "decode_failure"
)

// ProviderError is the typed failure raised by provider clients. Class is one
// of the sentinels above and is matched by errors.Is.
type ProviderError struct {
	Provider string
	Class    error
	Status   int
	Body     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	if e.Class != nil {
		sb.WriteString(e.Class.Error())
	} else {
		sb.WriteString("error")
	}
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	} else if body := strings.TrimSpace(e.Body); body != "" {
		sb.WriteString(": ")
		sb.WriteString(truncate(body, 256))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Class != nil {
		errs = append(errs, e.Class)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewProviderError is a small constructor used across provider packages.
func NewProviderError(provider string, class error, message string) *ProviderError {
	return &ProviderError{Provider: provider, Class: class, Message: message}
}

// CancellationCause maps a context error onto the pipeline taxonomy: an
// explicit cancel belongs to the caller, an expired deadline is a timeout.
func CancellationCause(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCallerCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return err
	}
}

// IsCallerCancelled reports whether err should short-circuit the chain.
func IsCallerCancelled(err error) bool {
	return errors.Is(err, ErrCallerCancelled)
}

// ReasonOf classifies an error into a fallback reason.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrDisabled):
		return ReasonDisabled
	case errors.Is(err, ErrConfigurationMissing):
		return ReasonConfigurationMissing
	case errors.Is(err, ErrCapabilityUnavailable):
		return ReasonCapabilityUnavailable
	case errors.Is(err, ErrAuthRejected):
		return ReasonAuthRejected
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrDecode):
		return ReasonDecode
	default:
		return ReasonProviderFailure
	}
}

// IsSoft reports whether err is an expected degradation rather than a fault.
func IsSoft(err error) bool {
	return errors.Is(err, ErrDisabled) ||
		errors.Is(err, ErrConfigurationMissing) ||
		errors.Is(err, ErrCapabilityUnavailable) ||
		errors.Is(err, ErrAuthRejected)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
