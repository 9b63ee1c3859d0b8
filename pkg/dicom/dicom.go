// Package dicom turns the pixel data of a DICOM radiograph into an 8-bit
// grayscale image suitable for the detector.
package dicom

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	ErrNoPixelData = errors.New("dicom file has no pixel data")
	ErrNoFrames    = errors.New("dicom pixel data has no frames")
)

type IConverter interface {
	ToImage(r io.Reader, size int64) (image.Image, error)
}

type converter struct{}

func NewConverter() IConverter {
	return &converter{}
}

// ToImage parses the dataset and returns its first frame rescaled to the full
// 0-255 range. MONOCHROME1 data is inverted so bone is always bright.
func (c *converter) ToImage(r io.Reader, size int64) (image.Image, error) {
	ds, err := dicom.Parse(r, size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dicom: %w", err)
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, ErrNoPixelData
	}

	info := dicom.MustGetPixelDataInfo(el.Value)
	if info.IntentionallySkipped || len(info.Frames) == 0 {
		return nil, ErrNoFrames
	}

	frameImg, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	gray := Normalize(frameImg)

	if pi, err := ds.FindElementByTag(tag.PhotometricInterpretation); err == nil {
		values := dicom.MustGetStrings(pi.Value)
		if len(values) > 0 && strings.TrimSpace(values[0]) == "MONOCHROME1" {
			Invert(gray)
		}
	}

	return gray, nil
}

// Normalize maps the luminance of img linearly onto 0-255 using its own
// minimum and maximum. 8-bit grayscale input is returned as is; a constant
// image comes back black.
func Normalize(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	b := img.Bounds()
	values := make([]uint16, 0, b.Dx()*b.Dy())
	lo, hi := uint16(0xffff), uint16(0)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			values = append(values, v)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}

	out := image.NewGray(b)
	if hi <= lo {
		return out
	}

	span := float64(hi - lo)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(float64(values[i]-lo) * 255 / span))})
			i++
		}
	}

	return out
}

func Invert(img *image.Gray) {
	for i, v := range img.Pix {
		img.Pix[i] = 255 - v
	}
}
