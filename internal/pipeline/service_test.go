package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"closet/internal/adapter/repo"
	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/storage"
)

func baseConfig() *infra.Config {
	return &infra.Config{
		Cutout: infra.CutoutConfig{
			Endpoint:       "http://127.0.0.1:1/fal-ai/birefnet/v2",
			Model:          "General Use (Light)",
			Resolution:     "1024x1024",
			PollInterval:   time.Millisecond,
			MaxPolls:       5,
			RequestTimeout: 5 * time.Second,
		},
		TryOn: infra.TryOnConfig{
			BaseURL:        "http://127.0.0.1:1",
			Model:          "kolors-virtual-try-on-v1",
			PollInterval:   time.Millisecond,
			MaxPolls:       5,
			RequestTimeout: 5 * time.Second,
		},
		Tagging: infra.TaggingConfig{RequestTimeout: 5 * time.Second},
	}
}

type fixture struct {
	store   *storage.FileStore
	ledger  *repo.TransformationRepositoryMemory
	service *Service
	photo   string
}

func newFixture(t *testing.T, cfg *infra.Config, client *http.Client) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ledger := repo.NewMemoryTransformationRepository(10)
	caps := NewCapabilities(cfg, Deps{Store: store, HTTPClient: client})
	return &fixture{
		store:   store,
		ledger:  ledger,
		service: NewService(caps, store, ledger, nil),
		photo:   writeRedShirt(t, store.BasePath()),
	}
}

// writeRedShirt stores a small red-on-white photo and returns its path.
func writeRedShirt(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 8 && x < 24 && y >= 8 && y < 24 {
				c = color.NRGBA{R: 220, G: 20, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	path := filepath.Join(dir, "shirt.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestRemoveBackgroundFallsThroughToRemote(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fal-ai/birefnet/v2":
			io.WriteString(w, `{"request_id":"r1","status_url":"`+srv.URL+`/requests/r1/status","response_url":"`+srv.URL+`/requests/r1"}`)
		case "/requests/r1/status":
			io.WriteString(w, `{"status":"COMPLETED"}`)
		case "/requests/r1":
			io.WriteString(w, `{"image":{"url":"`+srv.URL+`/out.png"}}`)
		case "/out.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG transparent"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Cutout.APIKey = "fal-key"
	cfg.Cutout.Endpoint = srv.URL + "/fal-ai/birefnet/v2"
	f := newFixture(t, cfg, srv.Client())

	res, err := f.service.RemoveBackground(context.Background(), domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("RemoveBackground error: %v", err)
	}
	if !res.Succeeded() || res.Provider != "fal-birefnet" {
		t.Fatalf("expected remote success, got %+v", res)
	}
	if res.Location == f.photo || !strings.HasPrefix(res.Location, filepath.Join(f.store.BasePath(), "cutouts")) {
		t.Fatalf("expected a new cutout file, got %s", res.Location)
	}
	if data, err := os.ReadFile(res.Location); err != nil || string(data) != "\x89PNG transparent" {
		t.Fatalf("cutout content = %q, %v", data, err)
	}

	recent, err := f.service.RecentTransformations(context.Background(), 10)
	if err != nil || len(recent) != 1 || recent[0].Outcome != domain.OutcomeSuccess || recent[0].OutputRef != res.Location {
		t.Fatalf("unexpected ledger %+v, %v", recent, err)
	}
}

func TestVirtualTryOnWithoutCredentialsMakesNoCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.TryOn.BaseURL = srv.URL
	f := newFixture(t, cfg, srv.Client())
	person := writeRedShirt(t, t.TempDir())

	res, err := f.service.VirtualTryOn(context.Background(), domain.ImageRef{Path: f.photo}, domain.ImageRef{Path: person})
	if err != nil {
		t.Fatalf("VirtualTryOn error: %v", err)
	}
	if res.Succeeded() || res.Reason != domain.ReasonConfigurationMissing {
		t.Fatalf("expected configuration_missing fallback, got %+v", res)
	}
	if res.AssetPath() != person {
		t.Fatalf("fallback should return the person photo, got %s", res.AssetPath())
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected zero network calls, got %d", calls)
	}
}

func TestRemoveBackgroundAuthRejectedReturnsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"detail":"Authentication is required to access this application."}`)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Cutout.APIKey = "revoked"
	cfg.Cutout.Endpoint = srv.URL
	f := newFixture(t, cfg, srv.Client())
	before := countFiles(t, f.store.BasePath())

	res, err := f.service.RemoveBackground(context.Background(), domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("RemoveBackground error: %v", err)
	}
	if res.Succeeded() || res.Reason != domain.ReasonAuthRejected || res.Provider != "fal-birefnet" {
		t.Fatalf("expected auth_rejected fallback, got %+v", res)
	}
	if res.AssetPath() != f.photo || res.Location != "" {
		t.Fatalf("original path must be returned unchanged, got %+v", res)
	}
	if after := countFiles(t, f.store.BasePath()); after != before {
		t.Fatalf("no file should be written, had %d now %d", before, after)
	}
}

func TestRemoveBackgroundDisabledReportsReason(t *testing.T) {
	cfg := baseConfig()
	cfg.Cutout.APIKey = "fal-key"
	cfg.Cutout.Toggle = infra.ToggleOff
	cfg.Cutout.OnDevice = infra.ToggleOff
	f := newFixture(t, cfg, http.DefaultClient)

	res, err := f.service.RemoveBackground(context.Background(), domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("RemoveBackground error: %v", err)
	}
	if res.Reason != domain.ReasonDisabled {
		t.Fatalf("expected disabled, got %+v", res)
	}
}

func TestFacadeRejectsMissingInput(t *testing.T) {
	f := newFixture(t, baseConfig(), http.DefaultClient)
	ctx := context.Background()

	if _, err := f.service.RemoveBackground(ctx, domain.ImageRef{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.service.VirtualTryOn(ctx, domain.ImageRef{Path: f.photo}, domain.ImageRef{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.service.Categorize(ctx, domain.ImageRef{Path: filepath.Join(f.store.BasePath(), "nope.jpg")}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing file, got %v", err)
	}
}

func TestFacadePropagatesCallerCancellation(t *testing.T) {
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Cutout.APIKey = "fal-key"
	cfg.Cutout.Endpoint = srv.URL
	f := newFixture(t, cfg, srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := f.service.RemoveBackground(ctx, domain.ImageRef{Path: f.photo})
	if !errors.Is(err, domain.ErrCallerCancelled) {
		t.Fatalf("expected ErrCallerCancelled, got %v", err)
	}
	recent, _ := f.service.RecentTransformations(context.Background(), 10)
	if len(recent) != 0 {
		t.Fatalf("cancelled calls are not recorded, got %d", len(recent))
	}
}

func TestCategorizeFallsBackToLocalPalette(t *testing.T) {
	f := newFixture(t, baseConfig(), http.DefaultClient)

	res, err := f.service.Categorize(context.Background(), domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("Categorize error: %v", err)
	}
	if res.Outcome != domain.OutcomeFallback || res.Reason != domain.ReasonConfigurationMissing {
		t.Fatalf("expected configuration_missing fallback, got %+v", res)
	}
	if len(res.Colors) == 0 || res.Colors[0] != "Red" {
		t.Fatalf("expected local palette colors, got %v", res.Colors)
	}
}

func TestCategorizeMergesRemoteTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"category":"Tops","subcategory":"T-Shirt","season":"summer","occasions":["casual"],"tags":"cotton, basic"}`)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Tagging.Endpoint = srv.URL
	f := newFixture(t, cfg, srv.Client())

	res, err := f.service.Categorize(context.Background(), domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("Categorize error: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess || res.Category != "Tops" {
		t.Fatalf("expected remote success, got %+v", res)
	}
	if len(res.Colors) == 0 || res.Colors[0] != "Red" {
		t.Fatalf("local colors should survive an empty remote list, got %v", res.Colors)
	}
	if len(res.Seasons) != 1 || len(res.Tags) != 2 {
		t.Fatalf("attributes should be list-valued, got %+v", res.Categorization)
	}
}

func TestExtractColorsOnGarbageIsEmpty(t *testing.T) {
	f := newFixture(t, baseConfig(), http.DefaultClient)

	colors, err := f.service.ExtractColors(context.Background(), domain.ImageRef{Data: []byte("not an image")})
	if err != nil {
		t.Fatalf("ExtractColors error: %v", err)
	}
	if colors == nil || len(colors) != 0 {
		t.Fatalf("expected empty list, got %#v", colors)
	}
}

func TestCapabilitiesDescribeReportsMissingCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.Cutout.APIKey = "fal-key"
	cfg.TryOn.Toggle = infra.ToggleOff
	f := newFixture(t, cfg, http.DefaultClient)

	kinds := f.service.Capabilities()
	if len(kinds) != 3 || kinds[0].Kind != domain.KindBackgroundRemoval {
		t.Fatalf("unexpected kinds %+v", kinds)
	}
	cutout := kinds[0].Candidates
	if len(cutout) != 3 || cutout[1].Provider != "fal-birefnet" || !cutout[1].Available {
		t.Fatalf("unexpected cutout chain %+v", cutout)
	}
	if last := cutout[len(cutout)-1]; last.Mode != domain.ModePassthrough {
		t.Fatalf("passthrough must be last, got %+v", last)
	}
	if tryOn := kinds[1].Candidates[0]; tryOn.Available || tryOn.Reason != domain.ReasonDisabled {
		t.Fatalf("try-on should be disabled, got %+v", tryOn)
	}
	if tag := kinds[2].Candidates[0]; tag.Available || tag.Reason != domain.ReasonConfigurationMissing {
		t.Fatalf("tagging should lack configuration, got %+v", tag)
	}
}

func TestFacadeExpiredDeadlineFallsBack(t *testing.T) {
	cfg := baseConfig()
	cfg.Cutout.APIKey = "fal-key"
	f := newFixture(t, cfg, http.DefaultClient)
	person := writeRedShirt(t, t.TempDir())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	cut, err := f.service.RemoveBackground(ctx, domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("RemoveBackground error: %v", err)
	}
	if cut.Outcome != domain.OutcomeFallback || cut.Reason != domain.ReasonTimeout || cut.AssetPath() != f.photo {
		t.Fatalf("expected timeout fallback with the original, got %+v", cut)
	}

	tryOn, err := f.service.VirtualTryOn(ctx, domain.ImageRef{Path: f.photo}, domain.ImageRef{Path: person})
	if err != nil {
		t.Fatalf("VirtualTryOn error: %v", err)
	}
	if tryOn.Reason != domain.ReasonTimeout || tryOn.AssetPath() != person {
		t.Fatalf("expected timeout fallback with the person photo, got %+v", tryOn)
	}

	cat, err := f.service.Categorize(ctx, domain.ImageRef{Path: f.photo})
	if err != nil {
		t.Fatalf("Categorize error: %v", err)
	}
	if cat.Outcome != domain.OutcomeFallback || cat.Reason != domain.ReasonTimeout {
		t.Fatalf("expected timeout fallback, got %+v", cat)
	}
	if cat.Colors == nil || len(cat.Colors) != 0 {
		t.Fatalf("timed out categorization carries an empty color hint, got %#v", cat.Colors)
	}

	colors, err := f.service.ExtractColors(ctx, domain.ImageRef{Path: f.photo})
	if err != nil || colors == nil || len(colors) != 0 {
		t.Fatalf("expected empty colors, got %#v, %v", colors, err)
	}

	recent, _ := f.service.RecentTransformations(context.Background(), 10)
	if len(recent) != 3 {
		t.Fatalf("timeouts are recorded, got %d entries", len(recent))
	}
}

func TestTryOnPassthroughReturnsPerson(t *testing.T) {
	cfg := baseConfig()
	cfg.TryOn.Toggle = infra.ToggleOff
	f := newFixture(t, cfg, http.DefaultClient)

	req := domain.Request{
		ID:     "req-1",
		Kind:   domain.KindVirtualTryOn,
		Inputs: []domain.ImageRef{{Path: "garment.png"}, {Path: "person.png"}},
	}
	out, err := f.service.caps.tryOn.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Provider != PassthroughName || out.Value != "person.png" {
		t.Fatalf("passthrough should hand back the person photo, got %+v", out)
	}
}
