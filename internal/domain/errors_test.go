package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProviderErrorMatchesClassAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("wrapped: %w", &ProviderError{Provider: "fal", Class: ErrProviderFailure, Status: 502, Err: cause})
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause match")
	}
	if errors.Is(err, ErrAuthRejected) {
		t.Fatalf("unexpected auth match")
	}
	if msg := err.Error(); !strings.Contains(msg, "status 502") || !strings.Contains(msg, "fal") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestReasonOf(t *testing.T) {
	cases := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{ErrConfigurationMissing, ReasonConfigurationMissing},
		{NewProviderError("kling", ErrAuthRejected, "denied"), ReasonAuthRejected},
		{fmt.Errorf("x: %w", ErrCapabilityUnavailable), ReasonCapabilityUnavailable},
		{ErrTimeout, ReasonTimeout},
		{ErrDisabled, ReasonDisabled},
		{errors.New("boom"), ReasonProviderFailure},
	}
	for _, tc := range cases {
		if got := ReasonOf(tc.err); got != tc.want {
			t.Fatalf("ReasonOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestCancellationCause(t *testing.T) {
	if err := CancellationCause(context.Canceled); !IsCallerCancelled(err) {
		t.Fatalf("canceled should map to caller cancelled, got %v", err)
	}
	if err := CancellationCause(context.DeadlineExceeded); !errors.Is(err, ErrTimeout) || IsCallerCancelled(err) {
		t.Fatalf("deadline should map to timeout, got %v", err)
	}
	if CancellationCause(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestImageRefFormat(t *testing.T) {
	if got := (ImageRef{Path: "/tmp/a.PNG"}).Format(); got != "png" {
		t.Fatalf("format = %q, want png", got)
	}
	if got := (ImageRef{MIME: "image/webp", Path: "x.jpg"}).Format(); got != "webp" {
		t.Fatalf("format = %q, want webp", got)
	}
	if got := (ImageRef{Path: "shirt"}).Format(); got != "jpeg" {
		t.Fatalf("format = %q, want jpeg", got)
	}
}
