//go:build opencv

package segment

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"closet/internal/domain"
)

const compiled = true

// GrabCut mask labels.
const (
	maskForeground         = 1
	maskProbableForeground = 3
)

// foregroundMask runs GrabCut seeded with a rectangle inset 5% from every
// edge, on the assumption that garments are photographed roughly centered.
func foregroundMask(data []byte, iterations int) (image.Image, []bool, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, nil, fmt.Errorf("%w: empty image", domain.ErrDecode)
	}

	rows, cols := img.Rows(), img.Cols()
	insetX, insetY := max(cols/20, 1), max(rows/20, 1)
	rect := image.Rect(insetX, insetY, cols-insetX, rows-insetY)
	if rect.Empty() {
		return nil, nil, errors.New("image too small to segment")
	}

	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(img, &mask, rect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)

	fg := make([]bool, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := mask.GetUCharAt(y, x)
			fg[y*cols+x] = v == maskForeground || v == maskProbableForeground
		}
	}
	src, err := img.ToImage()
	if err != nil {
		return nil, nil, fmt.Errorf("convert mat: %w", err)
	}
	return src, fg, nil
}
