//go:build !opencv

package segment

import (
	"image"

	"closet/internal/domain"
)

const compiled = false

func foregroundMask(data []byte, iterations int) (image.Image, []bool, error) {
	return nil, nil, domain.ErrCapabilityUnavailable
}
