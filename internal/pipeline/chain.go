// Package pipeline turns photos into derived assets through ordered chains of
// failure-prone providers and normalizes every outcome into a result value.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"closet/internal/domain"
	"closet/internal/infra"
)

// Provider is one way of producing a T for a request.
type Provider[T any] interface {
	Name() string
	Attempt(ctx context.Context, req domain.Request) (T, error)
}

// Candidate places a provider in a chain. Available is evaluated per run; a
// nil predicate means always available. When the predicate is false the
// provider is not called and Unavailable (default
// domain.ErrCapabilityUnavailable) is recorded as its failure.
type Candidate[T any] struct {
	Provider    Provider[T]
	Mode        domain.ProviderMode
	Available   func() bool
	Unavailable error
}

// Step records what happened to one candidate during a run.
type Step struct {
	Provider string
	Mode     domain.ProviderMode
	Reason   domain.Reason
	Err      error
	Duration time.Duration
}

// Outcome is the chain's verdict. When Fallback is set, Value came from a
// passthrough candidate (or is the zero value if the chain ran out of
// candidates) and Reason/Err describe the last real failure.
type Outcome[T any] struct {
	Value    T
	Provider string
	Mode     domain.ProviderMode
	Fallback bool
	Reason   domain.Reason
	Failed   string
	Err      error
	Steps    []Step
}

// Chain tries candidates in declared order and commits to the first success.
type Chain[T any] struct {
	kind       domain.Kind
	candidates []Candidate[T]
	logger     *infra.Logger
}

// NewChain builds a chain for kind. The candidate list is copied and never
// mutated afterwards.
func NewChain[T any](kind domain.Kind, logger *infra.Logger, candidates ...Candidate[T]) *Chain[T] {
	return &Chain[T]{
		kind:       kind,
		candidates: append([]Candidate[T](nil), candidates...),
		logger:     infra.LoggerOrDiscard(logger),
	}
}

// Kind returns the transformation kind this chain serves.
func (c *Chain[T]) Kind() domain.Kind {
	return c.kind
}

// Candidates returns a copy of the declared candidates.
func (c *Chain[T]) Candidates() []Candidate[T] {
	return append([]Candidate[T](nil), c.candidates...)
}

// Run walks the chain. Soft and hard failures both move on to the next
// candidate; only caller cancellation aborts, returning an error wrapping
// domain.ErrCallerCancelled.
func (c *Chain[T]) Run(ctx context.Context, req domain.Request) (Outcome[T], error) {
	var out Outcome[T]
	var lastErr error

	for _, cand := range c.candidates {
		name := cand.Provider.Name()
		passthrough := cand.Mode == domain.ModePassthrough

		if !passthrough {
			if err := domain.CancellationCause(ctx.Err()); err != nil {
				if domain.IsCallerCancelled(err) {
					return out, err
				}
				out.Steps = append(out.Steps, Step{Provider: name, Mode: cand.Mode, Reason: domain.ReasonOf(err), Err: err})
				lastErr, out.Failed = err, name
				continue
			}
		}

		if cand.Available != nil && !cand.Available() {
			err := cand.Unavailable
			if err == nil {
				err = domain.ErrCapabilityUnavailable
			}
			c.logger.Debug().
				Str("kind", string(c.kind)).
				Str("provider", name).
				Str("reason", string(domain.ReasonOf(err))).
				Msg("candidate skipped")
			out.Steps = append(out.Steps, Step{Provider: name, Mode: cand.Mode, Reason: domain.ReasonOf(err), Err: err})
			lastErr, out.Failed = err, name
			continue
		}

		started := time.Now()
		value, err := attempt(ctx, cand.Provider, req)
		step := Step{Provider: name, Mode: cand.Mode, Err: err, Duration: time.Since(started)}

		if err == nil {
			out.Steps = append(out.Steps, step)
			out.Value = value
			out.Provider = name
			out.Mode = cand.Mode
			if passthrough {
				out.Fallback = true
				if lastErr == nil {
					lastErr = domain.ErrCapabilityUnavailable
				}
				out.Err = lastErr
				out.Reason = domain.ReasonOf(lastErr)
				c.logger.Warn().
					Str("kind", string(c.kind)).
					Str("provider", out.Failed).
					Str("reason", string(out.Reason)).
					Err(lastErr).
					Msg("falling back to original input")
			} else {
				c.logger.Info().
					Str("kind", string(c.kind)).
					Str("provider", name).
					Dur("duration", step.Duration).
					Msg("transformation succeeded")
			}
			return out, nil
		}

		if domain.IsCallerCancelled(err) {
			out.Steps = append(out.Steps, step)
			return out, err
		}
		step.Reason = domain.ReasonOf(err)
		out.Steps = append(out.Steps, step)
		lastErr, out.Failed = err, name
		c.logFailure(name, err)
	}

	out.Fallback = true
	if lastErr == nil {
		lastErr = domain.ErrCapabilityUnavailable
	}
	out.Err = lastErr
	out.Reason = domain.ReasonOf(lastErr)
	c.logger.Warn().
		Str("kind", string(c.kind)).
		Str("provider", out.Failed).
		Str("reason", string(out.Reason)).
		Err(lastErr).
		Msg("no candidate succeeded")
	return out, nil
}

func (c *Chain[T]) logFailure(name string, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthRejected):
		c.logger.Warn().Str("kind", string(c.kind)).Str("provider", name).Err(err).
			Msg("credential rejected; check the provider key")
	case domain.IsSoft(err):
		c.logger.Debug().Str("kind", string(c.kind)).Str("provider", name).Err(err).
			Msg("candidate unavailable")
	default:
		c.logger.Warn().Str("kind", string(c.kind)).Str("provider", name).Err(err).
			Msg("candidate failed")
	}
}

// attempt calls the provider and converts a panic into a hard failure so one
// broken provider cannot take the caller down.
func attempt[T any](ctx context.Context, p Provider[T], req domain.Request) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &domain.ProviderError{
				Provider: p.Name(),
				Class:    domain.ErrProviderFailure,
				Message:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return p.Attempt(ctx, req)
}

// passthrough hands back a value derived from the request itself.
type passthrough[T any] struct {
	name string
	fn   func(domain.Request) T
}

// Passthrough returns a candidate that always succeeds with fn(req). It
// belongs at the end of a chain.
func Passthrough[T any](name string, fn func(domain.Request) T) Candidate[T] {
	return Candidate[T]{Provider: passthrough[T]{name: name, fn: fn}, Mode: domain.ModePassthrough}
}

func (p passthrough[T]) Name() string {
	return p.name
}

func (p passthrough[T]) Attempt(_ context.Context, req domain.Request) (T, error) {
	return p.fn(req), nil
}
