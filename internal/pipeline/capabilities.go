package pipeline

import (
	"net/http"

	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/providers/fal"
	"closet/internal/providers/kling"
	"closet/internal/providers/segment"
	"closet/internal/providers/tagging"
)

// PassthroughName is the provider name reported when the original input is
// handed back.
const PassthroughName = "passthrough"

// Deps are the collaborators shared by every provider.
type Deps struct {
	Store      domain.AssetStore
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Capabilities is the process-wide table of provider chains per kind. It is
// built once at startup and read-only afterwards.
type Capabilities struct {
	cutout     *Chain[string]
	tryOn      *Chain[string]
	categorize *Chain[domain.Categorization]
}

// NewCapabilities wires the provider chains from configuration.
func NewCapabilities(cfg *infra.Config, deps Deps) *Capabilities {
	logger := infra.LoggerOrDiscard(deps.Logger)

	seg := segment.New(segment.Options{
		Toggle: cfg.Cutout.OnDevice,
		Store:  deps.Store,
		Logger: logger,
	})
	cutout := fal.NewCutout(fal.Options{
		APIKey:         cfg.Cutout.APIKey,
		Endpoint:       cfg.Cutout.Endpoint,
		Model:          cfg.Cutout.Model,
		Resolution:     cfg.Cutout.Resolution,
		PollInterval:   cfg.Cutout.PollInterval,
		MaxPolls:       cfg.Cutout.MaxPolls,
		RequestTimeout: cfg.Cutout.RequestTimeout,
		HTTPClient:     deps.HTTPClient,
		Store:          deps.Store,
		Logger:         logger,
	})
	tryOn := kling.NewTryOn(kling.Options{
		AccessKey:      cfg.TryOn.AccessKey,
		SecretKey:      cfg.TryOn.SecretKey,
		BaseURL:        cfg.TryOn.BaseURL,
		Model:          cfg.TryOn.Model,
		PollInterval:   cfg.TryOn.PollInterval,
		MaxPolls:       cfg.TryOn.MaxPolls,
		RequestTimeout: cfg.TryOn.RequestTimeout,
		HTTPClient:     deps.HTTPClient,
		Store:          deps.Store,
		Logger:         logger,
	})
	classifier := tagging.NewClassifier(tagging.Options{
		Endpoint:       cfg.Tagging.Endpoint,
		APIKey:         cfg.Tagging.APIKey,
		RequestTimeout: cfg.Tagging.RequestTimeout,
		HTTPClient:     deps.HTTPClient,
		Logger:         logger,
	})

	if cfg.Tagging.Toggle.Enabled() && !cfg.TaggingConfigured() {
		logger.Debug().Msg("tagging endpoint not set, categorization will use the local palette")
	}

	segCandidate := Candidate[string]{Provider: seg, Mode: domain.ModeOnDevice, Available: seg.Available}
	if cfg.Cutout.OnDevice == infra.ToggleOff {
		segCandidate = disabled(segCandidate)
	}

	return &Capabilities{
		cutout: NewChain(domain.KindBackgroundRemoval, logger,
			segCandidate,
			gate(Candidate[string]{Provider: cutout, Mode: domain.ModeQueued}, cfg.Cutout.Toggle),
			Passthrough(PassthroughName, originalPath),
		),
		tryOn: NewChain(domain.KindVirtualTryOn, logger,
			gate(Candidate[string]{Provider: tryOn, Mode: domain.ModeQueued}, cfg.TryOn.Toggle),
			Passthrough(PassthroughName, personPath),
		),
		categorize: NewChain(domain.KindCategorization, logger,
			gate(Candidate[domain.Categorization]{Provider: classifier, Mode: domain.ModeSynchronous}, cfg.Tagging.Toggle),
			Passthrough("local-palette", func(req domain.Request) domain.Categorization {
				return tagging.LocalOnly(req.ColorHint)
			}),
		),
	}
}

// gate removes a candidate from consideration when its toggle is off.
func gate[T any](c Candidate[T], toggle infra.Toggle) Candidate[T] {
	if toggle.Enabled() {
		return c
	}
	return disabled(c)
}

func disabled[T any](c Candidate[T]) Candidate[T] {
	c.Available = func() bool { return false }
	c.Unavailable = domain.ErrDisabled
	return c
}

func originalPath(req domain.Request) string {
	return req.Primary().Path
}

// personPath is the try-on fallback: the person photo, not the garment.
func personPath(req domain.Request) string {
	return req.Secondary().Path
}

// CandidateDescriptor describes one chain entry for diagnostics.
type CandidateDescriptor struct {
	Provider  string              `json:"provider"`
	Mode      domain.ProviderMode `json:"mode"`
	Available bool                `json:"available"`
	Reason    domain.Reason       `json:"reason,omitempty"`
}

// KindDescriptor lists the ordered candidates for one kind.
type KindDescriptor struct {
	Kind       domain.Kind           `json:"kind"`
	Candidates []CandidateDescriptor `json:"candidates"`
}

type credentialed interface {
	HasCredentials() bool
}

// Describe reports the table in kind order.
func (c *Capabilities) Describe() []KindDescriptor {
	return []KindDescriptor{
		describe(c.cutout),
		describe(c.tryOn),
		describe(c.categorize),
	}
}

func describe[T any](chain *Chain[T]) KindDescriptor {
	desc := KindDescriptor{Kind: chain.Kind()}
	for _, cand := range chain.Candidates() {
		d := CandidateDescriptor{Provider: cand.Provider.Name(), Mode: cand.Mode, Available: true}
		switch {
		case cand.Available != nil && !cand.Available():
			d.Available = false
			err := cand.Unavailable
			if err == nil {
				err = domain.ErrCapabilityUnavailable
			}
			d.Reason = domain.ReasonOf(err)
		default:
			if cp, ok := cand.Provider.(credentialed); ok && !cp.HasCredentials() {
				d.Available = false
				d.Reason = domain.ReasonConfigurationMissing
			}
		}
		desc.Candidates = append(desc.Candidates, d)
	}
	return desc
}
