package palette

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"reflect"
	"testing"

	"closet/internal/domain"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func filled(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNearestResolvesTiesInDeclaredOrder(t *testing.T) {
	cases := map[[3]uint8]string{
		{0, 0, 0}:       "Black",
		{255, 255, 255}: "White",
		{200, 60, 70}:   "Red",
		{255, 0, 0}:     "Red",
		{20, 40, 190}:   "Blue",
		{90, 150, 90}:   "Green",
		// Equidistant from Black and Gray; Black is declared first.
		{64, 64, 64}: "Black",
	}
	for in, want := range cases {
		if got := Nearest(in[0], in[1], in[2]); got != want {
			t.Fatalf("Nearest(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	img := filled(120, 80, color.NRGBA{R: 70, G: 100, B: 200, A: 255})
	for x := 0; x < 40; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.NRGBA{R: 245, G: 210, B: 70, A: 255})
		}
	}
	data := encodePNG(t, img)

	first := Extract(data)
	second := Extract(data)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
	if len(first) == 0 || first[0] != "Blue" {
		t.Fatalf("expected Blue first, got %v", first)
	}
}

func TestExtractSuppressesWhiteBackground(t *testing.T) {
	img := filled(Dimension, Dimension, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	// 12x12 of 64x64 is about 3.5% of the image.
	for y := 10; y < 22; y++ {
		for x := 30; x < 42; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	got := Extract(encodePNG(t, img))
	if len(got) == 0 || got[0] != "Red" {
		t.Fatalf("expected Red as top color, got %v", got)
	}
	for _, name := range got {
		if name == "White" {
			t.Fatalf("background white leaked into result %v", got)
		}
	}
}

func TestExtractDefaultsWhenEverythingFiltered(t *testing.T) {
	transparent := filled(32, 32, color.NRGBA{R: 10, G: 10, B: 10, A: 0})
	if got := Extract(encodePNG(t, transparent)); !reflect.DeepEqual(got, []string{DefaultColor}) {
		t.Fatalf("transparent image = %v, want [%s]", got, DefaultColor)
	}
	white := filled(32, 32, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if got := Extract(encodePNG(t, white)); !reflect.DeepEqual(got, []string{DefaultColor}) {
		t.Fatalf("white image = %v, want [%s]", got, DefaultColor)
	}
}

func TestExtractCapsAndRanksByCount(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, Dimension, Dimension))
	stripes := []struct {
		rows int
		c    color.NRGBA
	}{
		{28, color.NRGBA{R: 90, G: 150, B: 90, A: 255}},  // Green
		{20, color.NRGBA{R: 150, G: 110, B: 190, A: 255}}, // Purple
		{10, color.NRGBA{R: 121, G: 85, B: 61, A: 255}},   // Brown
		{6, color.NRGBA{R: 0, G: 0, B: 0, A: 255}},        // Black
	}
	y := 0
	for _, s := range stripes {
		for i := 0; i < s.rows; i++ {
			for x := 0; x < Dimension; x++ {
				img.Set(x, y, s.c)
			}
			y++
		}
	}
	got := Extract(encodePNG(t, img))
	want := []string{"Green", "Purple", "Brown"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractDecodesJPEG(t *testing.T) {
	var buf bytes.Buffer
	img := filled(100, 100, color.NRGBA{R: 90, G: 150, B: 90, A: 255})
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	got := Extract(buf.Bytes())
	if len(got) == 0 || got[0] != "Green" {
		t.Fatalf("expected Green, got %v", got)
	}
}

func TestExtractReturnsEmptyOnGarbage(t *testing.T) {
	got := Extract([]byte("definitely not an image"))
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if _, err := Analyze(nil); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestAnalyzeRejectsOversizedHeader(t *testing.T) {
	data := encodePNG(t, filled(1, 1, color.NRGBA{R: 200, A: 255}))
	// IHDR data starts at byte 16: width, height, then 5 bytes of flags.
	binary.BigEndian.PutUint32(data[16:20], 10000)
	binary.BigEndian.PutUint32(data[20:24], 10000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	if _, err := Analyze(data); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if got := Extract(data); got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"blue":       "Blue",
		"  GREEN ":   "Green",
		"navy  blue": "Navy Blue",
		"":           "",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Fatalf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}
