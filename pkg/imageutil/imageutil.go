// Package imageutil decodes raster radiographs and re-encodes them as PNG.
package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"DentoScan/internal/entity"
)

// Decode reads any raster format registered with the imaging package,
// applying EXIF orientation so boxes line up with what clients display.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Fit downsizes img to fit within maxSide x maxSide. Smaller images and a
// non-positive maxSide return img unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		return img
	}

	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return img
	}

	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func Dimensions(img image.Image) *entity.ImageDimensions {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	return &entity.ImageDimensions{Width: b.Dx(), Height: b.Dy()}
}
