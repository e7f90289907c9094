package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/palette"
	"closet/internal/providers/tagging"
	"closet/internal/storage"
)

// Service is the single entry point for photo transformations. Its methods
// never return provider errors: every degradable failure becomes a fallback
// result. Only domain.ErrInvalidRequest and domain.ErrCallerCancelled are
// returned as errors.
type Service struct {
	caps   *Capabilities
	store  domain.AssetStore
	ledger *Ledger
	logger *infra.Logger
}

// NewService builds the facade. repo may be nil, in which case outcomes are
// only logged.
func NewService(caps *Capabilities, store domain.AssetStore, repo domain.TransformationRepository, logger *infra.Logger) *Service {
	logger = infra.LoggerOrDiscard(logger)
	return &Service{
		caps:   caps,
		store:  store,
		ledger: NewLedger(repo, logger),
		logger: logger,
	}
}

// Capabilities describes the provider chains per kind.
func (s *Service) Capabilities() []KindDescriptor {
	return s.caps.Describe()
}

// RemoveBackground cuts the garment out of photo. On success the result
// points at a new transparent PNG; otherwise photo is handed back.
func (s *Service) RemoveBackground(ctx context.Context, photo domain.ImageRef) (domain.Result, error) {
	if photo.IsZero() {
		return domain.Result{}, fmt.Errorf("%w: photo is required", domain.ErrInvalidRequest)
	}
	loaded, err := s.load(ctx, photo)
	if err != nil {
		return s.loadFailed(ctx, domain.KindBackgroundRemoval, photo, err)
	}
	req := domain.Request{ID: uuid.NewString(), Kind: domain.KindBackgroundRemoval, Inputs: []domain.ImageRef{loaded}}
	return s.runAsset(ctx, s.caps.cutout, req, photo)
}

// VirtualTryOn renders garment on person. The inputs are read concurrently.
func (s *Service) VirtualTryOn(ctx context.Context, garment, person domain.ImageRef) (domain.Result, error) {
	if garment.IsZero() || person.IsZero() {
		return domain.Result{}, fmt.Errorf("%w: garment and person photos are required", domain.ErrInvalidRequest)
	}
	var loadedGarment, loadedPerson domain.ImageRef
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loadedGarment, err = s.load(gctx, garment)
		return err
	})
	g.Go(func() error {
		var err error
		loadedPerson, err = s.load(gctx, person)
		return err
	})
	if err := g.Wait(); err != nil {
		// errgroup cancels the sibling read on failure; report the caller's
		// own cancellation rather than the derived one.
		if ctxErr := domain.CancellationCause(ctx.Err()); ctxErr != nil {
			err = ctxErr
		}
		return s.loadFailed(ctx, domain.KindVirtualTryOn, person, err)
	}
	req := domain.Request{
		ID:     uuid.NewString(),
		Kind:   domain.KindVirtualTryOn,
		Inputs: []domain.ImageRef{loadedGarment, loadedPerson},
	}
	return s.runAsset(ctx, s.caps.tryOn, req, person)
}

// Categorize returns category and attribute tags for photo. Local palette
// colors are always computed; the remote classifier enriches them when
// available.
func (s *Service) Categorize(ctx context.Context, photo domain.ImageRef) (domain.CategorizationResult, error) {
	if photo.IsZero() {
		return domain.CategorizationResult{}, fmt.Errorf("%w: photo is required", domain.ErrInvalidRequest)
	}
	loaded, err := s.load(ctx, photo)
	if errors.Is(err, domain.ErrTimeout) {
		res := domain.CategorizationResult{
			RequestID:      uuid.NewString(),
			Outcome:        domain.OutcomeFallback,
			Reason:         domain.ReasonTimeout,
			Detail:         err.Error(),
			Categorization: tagging.LocalOnly([]string{}),
		}
		s.ledger.Record(ctx, domain.TransformationRecord{
			RequestID: res.RequestID,
			Kind:      domain.KindCategorization,
			Outcome:   res.Outcome,
			Reason:    res.Reason,
			InputRef:  inputRef(photo),
		})
		return res, nil
	}
	if err != nil {
		return domain.CategorizationResult{}, err
	}
	req := domain.Request{
		ID:        uuid.NewString(),
		Kind:      domain.KindCategorization,
		Inputs:    []domain.ImageRef{loaded},
		ColorHint: s.colors(loaded),
	}

	started := time.Now()
	out, err := s.caps.categorize.Run(ctx, req)
	if err != nil {
		return domain.CategorizationResult{}, s.cancelled(req, err)
	}
	res := domain.CategorizationResult{
		RequestID:      req.ID,
		Outcome:        domain.OutcomeSuccess,
		Provider:       out.Provider,
		Duration:       time.Since(started),
		Categorization: out.Value,
	}
	if out.Fallback {
		res.Outcome = domain.OutcomeFallback
		res.Reason = out.Reason
		res.Detail = errorDetail(out.Err)
		if out.Provider == "" {
			// Ran out of candidates without a passthrough.
			res.Categorization = tagging.LocalOnly(req.ColorHint)
		}
	}
	s.ledger.Record(ctx, domain.TransformationRecord{
		RequestID: req.ID,
		Kind:      req.Kind,
		Provider:  res.Provider,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		InputRef:  inputRef(photo),
		Duration:  res.Duration,
	})
	return res, nil
}

// ExtractColors runs only the palette classifier. Undecodable images yield an
// empty list, not an error.
func (s *Service) ExtractColors(ctx context.Context, photo domain.ImageRef) ([]string, error) {
	if photo.IsZero() {
		return nil, fmt.Errorf("%w: photo is required", domain.ErrInvalidRequest)
	}
	loaded, err := s.load(ctx, photo)
	if errors.Is(err, domain.ErrTimeout) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.colors(loaded), nil
}

// RecentTransformations lists the latest ledger entries.
func (s *Service) RecentTransformations(ctx context.Context, limit int) ([]domain.TransformationRecord, error) {
	return s.ledger.Recent(ctx, limit)
}

func (s *Service) runAsset(ctx context.Context, chain *Chain[string], req domain.Request, original domain.ImageRef) (domain.Result, error) {
	started := time.Now()
	out, err := chain.Run(ctx, req)
	if err != nil {
		return domain.Result{}, s.cancelled(req, err)
	}

	res := domain.Result{
		RequestID: req.ID,
		Kind:      req.Kind,
		Original:  original,
		Duration:  time.Since(started),
	}
	if out.Fallback {
		res.Outcome = domain.OutcomeFallback
		res.Provider = out.Failed
		res.Reason = out.Reason
		res.Detail = errorDetail(out.Err)
	} else {
		res.Outcome = domain.OutcomeSuccess
		res.Provider = out.Provider
		res.Location = out.Value
	}
	s.ledger.Record(ctx, domain.TransformationRecord{
		RequestID: req.ID,
		Kind:      req.Kind,
		Provider:  res.Provider,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		InputRef:  inputRef(original),
		OutputRef: res.Location,
		Duration:  res.Duration,
	})
	return res, nil
}

// loadFailed turns an input deadline into a fallback that hands original back.
// Any other load error is returned unchanged.
func (s *Service) loadFailed(ctx context.Context, kind domain.Kind, original domain.ImageRef, err error) (domain.Result, error) {
	if !errors.Is(err, domain.ErrTimeout) {
		return domain.Result{}, err
	}
	res := domain.Result{
		RequestID: uuid.NewString(),
		Kind:      kind,
		Outcome:   domain.OutcomeFallback,
		Original:  original,
		Reason:    domain.ReasonTimeout,
		Detail:    err.Error(),
	}
	s.ledger.Record(ctx, domain.TransformationRecord{
		RequestID: res.RequestID,
		Kind:      kind,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		InputRef:  inputRef(original),
	})
	return res, nil
}

// load fills in Data and MIME for a reference. Reading a path that does not
// exist is caller misuse.
func (s *Service) load(ctx context.Context, ref domain.ImageRef) (domain.ImageRef, error) {
	if err := domain.CancellationCause(ctx.Err()); err != nil {
		return ref, err
	}
	if len(ref.Data) == 0 {
		if s.store == nil {
			return ref, fmt.Errorf("%w: no store to read %s", domain.ErrInvalidRequest, ref.Path)
		}
		data, err := s.store.Read(ctx, ref.Path)
		if err != nil {
			if ctxErr := domain.CancellationCause(ctx.Err()); ctxErr != nil {
				return ref, ctxErr
			}
			s.logger.Debug().Err(err).Str("path", ref.Path).Msg("input read failed")
			return ref, fmt.Errorf("%w: %s could not be read", domain.ErrInvalidRequest, ref.Path)
		}
		if len(data) == 0 {
			return ref, fmt.Errorf("%w: %s is empty", domain.ErrInvalidRequest, ref.Path)
		}
		ref.Data = data
	}
	if strings.TrimSpace(ref.MIME) == "" {
		ref.MIME = storage.MIMEForPath(ref.Path)
		if ref.MIME == "" {
			ref.MIME = http.DetectContentType(ref.Data)
		}
	}
	return ref, nil
}

func (s *Service) colors(ref domain.ImageRef) []string {
	names, err := palette.Analyze(ref.Data)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", ref.Path).Msg("palette: no color signal")
		return []string{}
	}
	return names
}

func (s *Service) cancelled(req domain.Request, err error) error {
	if domain.IsCallerCancelled(err) {
		s.logger.Info().Str("kind", string(req.Kind)).Str("request_id", req.ID).Msg("transformation cancelled by caller")
		return err
	}
	// Chains only return caller cancellation; anything else is a bug worth
	// surfacing as-is.
	return errors.Join(domain.ErrProviderFailure, err)
}

func inputRef(ref domain.ImageRef) string {
	if ref.Path != "" {
		return ref.Path
	}
	return fmt.Sprintf("inline:%d", len(ref.Data))
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
