package segment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"closet/internal/domain"
	"closet/internal/infra"
)

func TestAvailabilityPredicate(t *testing.T) {
	cases := []struct {
		name     string
		compiled bool
		toggle   infra.Toggle
		goos     string
		want     bool
	}{
		{"compiled linux", true, infra.ToggleUnset, "linux", true},
		{"disabled", true, infra.ToggleOff, "linux", false},
		{"not compiled", false, infra.ToggleOn, "darwin", false},
		{"unsupported os", true, infra.ToggleOn, "js", false},
	}
	for _, tc := range cases {
		s := New(Options{Toggle: tc.toggle})
		s.compiled, s.goos = tc.compiled, tc.goos
		if got := s.Available(); got != tc.want {
			t.Fatalf("%s: Available() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAttemptUnavailableIsSoft(t *testing.T) {
	s := New(Options{})
	s.compiled = false
	_, err := s.Attempt(context.Background(), domain.Request{Inputs: []domain.ImageRef{{Data: []byte("x")}}})
	if !errors.Is(err, domain.ErrCapabilityUnavailable) || !domain.IsSoft(err) {
		t.Fatalf("expected soft ErrCapabilityUnavailable, got %v", err)
	}
}

func TestCompositeCropsToForeground(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	red := color.NRGBA{R: 255, A: 255}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, red)
		}
	}
	fg := []bool{
		false, false, false, false,
		false, true, true, false,
		false, false, true, false,
	}
	out, ok := composite(src, fg)
	if !ok {
		t.Fatal("expected foreground")
	}
	if out.Bounds().Dx() != 2 || out.Bounds().Dy() != 2 {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if got := out.NRGBAAt(0, 1); got.A != 0 {
		t.Fatalf("background pixel should be transparent, got %v", got)
	}
	if got := out.NRGBAAt(1, 1); got != red {
		t.Fatalf("foreground pixel = %v, want %v", got, red)
	}
	if _, ok := composite(src, make([]bool, 12)); ok {
		t.Fatal("empty mask should report no foreground")
	}
}
