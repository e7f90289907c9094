// Package palette summarizes a garment photo as a short list of named colors.
//
// The classifier is pure: the same bytes always produce the same list. It
// downsamples to a fixed square, drops transparent and near-white background
// pixels, assigns every remaining pixel to the nearest entry of a fixed
// palette and ranks the names by pixel count.
package palette

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"closet/internal/domain"
)

const (
	// Dimension is the side of the square every image is resampled to.
	Dimension = 64
	// MaxColors caps the number of names returned.
	MaxColors = 3
	// DefaultColor is returned when every pixel was filtered out.
	DefaultColor = "White"

	// MaxPixels bounds the decoded size of an input. Larger images are
	// rejected from their header before any pixel buffer is allocated.
	MaxPixels = 40_000_000

	minAlpha            = 128
	brightnessThreshold = 248
)

// Color is one named palette entry.
type Color struct {
	Name    string
	R, G, B uint8
}

// table is ordered; nearest-color ties resolve to the earlier entry.
var table = []Color{
	{"Black", 0, 0, 0},
	{"White", 255, 255, 255},
	{"Gray", 128, 128, 128},
	{"Blue", 70, 100, 200},
	{"Pink", 232, 140, 180},
	{"Beige", 214, 196, 170},
	{"Brown", 121, 85, 61},
	{"Orange", 240, 140, 60},
	{"Red", 200, 60, 70},
	{"Yellow", 245, 210, 70},
	{"Purple", 150, 110, 190},
	{"Green", 90, 150, 90},
}

var titleCaser = cases.Title(language.English)

// Canonical maps a free-form color name onto its palette spelling ("blue"
// becomes "Blue"). Names outside the palette are title-cased, so "navy BLUE"
// becomes "Navy Blue".
func Canonical(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	for _, c := range table {
		if strings.EqualFold(c.Name, name) {
			return c.Name
		}
	}
	return titleCaser.String(name)
}

// Nearest returns the palette name with the smallest squared Euclidean
// distance to the given color.
func Nearest(r, g, b uint8) string {
	best := 0
	bestDist := -1
	for i, c := range table {
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return table[best].Name
}

// Extract returns the dominant colors of an encoded image. Any decode failure
// yields an empty, non-nil slice.
func Extract(data []byte) []string {
	names, err := Analyze(data)
	if err != nil {
		return []string{}
	}
	return names
}

// Analyze is Extract with the decode error exposed for logging. The error
// wraps domain.ErrDecode.
func Analyze(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("palette: %w: empty input", domain.ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("palette: %w: %w", domain.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("palette: %w: %dx%d exceeds %d pixels", domain.ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("palette: %w: %w", domain.ErrDecode, err)
	}
	return ExtractImage(img), nil
}

// ExtractImage classifies an already decoded image.
func ExtractImage(img image.Image) []string {
	px := resample(img)

	counts := make([]int, len(table))
	index := make(map[string]int, len(table))
	for i, c := range table {
		index[c.Name] = i
	}

	for i := 0; i+3 < len(px.Pix); i += 4 {
		r, g, b, a := px.Pix[i], px.Pix[i+1], px.Pix[i+2], px.Pix[i+3]
		if a < minAlpha {
			continue
		}
		if r > brightnessThreshold && g > brightnessThreshold && b > brightnessThreshold {
			continue
		}
		counts[index[Nearest(r, g, b)]]++
	}

	order := make([]int, 0, len(table))
	for i, n := range counts {
		if n > 0 {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return []string{DefaultColor}
	}
	// Stable so equal counts keep palette order.
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > MaxColors {
		order = order[:MaxColors]
	}
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = table[idx].Name
	}
	return names
}

// resample draws img into a Dimension×Dimension non-premultiplied buffer.
// Images already at that size are copied pixel for pixel.
func resample(img image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, Dimension, Dimension))
	b := img.Bounds()
	if b.Dx() == Dimension && b.Dy() == Dimension {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
