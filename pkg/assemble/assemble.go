// Package assemble produces the final 3-channel 8-bit image: it expands
// grayscale to RGB, applies the cosmetic enhancements of an
// EnhancementProfile and finishes with the black-level gamma curve.
package assemble

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"dicomconvert/internal/models"
)

var (
	// ErrEmptyImage is returned when there are no pixels to assemble
	ErrEmptyImage = errors.New("no pixels to assemble")

	// ErrChannelCount is returned for images that are neither 1 nor 3 channels
	ErrChannelCount = errors.New("unsupported channel count")
)

// Normalized is an 8-bit image with 1 or 3 interleaved channels
type Normalized struct {
	Rows     int
	Cols     int
	Channels int
	Pix      []uint8

	// Kind is only consulted for 3-channel images; YBRFull is converted to RGB
	Kind models.Photometric
}

// FromGray wraps the tone mapper's output
func FromGray(rows, cols int, pix []uint8) *Normalized {
	return &Normalized{Rows: rows, Cols: cols, Channels: 1, Pix: pix, Kind: models.Monochrome2}
}

// FromColorRecord converts a decoded colour record to 8-bit samples,
// clamping and truncating.
func FromColorRecord(rec *models.Record) (*Normalized, error) {
	if rec == nil || len(rec.Samples) == 0 {
		return nil, ErrEmptyImage
	}
	if rec.SamplesPerPixel != 3 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, rec.SamplesPerPixel)
	}
	pix := make([]uint8, len(rec.Samples))
	for i, v := range rec.Samples {
		switch {
		case v <= 0:
			pix[i] = 0
		case v >= 255:
			pix[i] = 255
		default:
			pix[i] = uint8(v)
		}
	}
	return &Normalized{Rows: rec.Rows, Cols: rec.Cols, Channels: 3, Pix: pix, Kind: rec.Kind}, nil
}

// Assemble builds the output image. Enhancements run in the order
// brightness, color, contrast, sharpness; a multiplier of exactly 1 is
// skipped. The gamma curve is applied last so it shapes the final tones.
// The output always has the input's width and height.
func Assemble(n *Normalized, p models.EnhancementProfile) (*image.RGBA, error) {
	if n == nil || len(n.Pix) == 0 || n.Rows <= 0 || n.Cols <= 0 {
		return nil, ErrEmptyImage
	}
	if len(n.Pix) != n.Rows*n.Cols*n.Channels {
		return nil, fmt.Errorf("%w: %d bytes for %dx%dx%d", ErrEmptyImage, len(n.Pix), n.Rows, n.Cols, n.Channels)
	}

	var rgb []uint8
	switch n.Channels {
	case 1:
		rgb = make([]uint8, len(n.Pix)*3)
		for i, v := range n.Pix {
			rgb[i*3] = v
			rgb[i*3+1] = v
			rgb[i*3+2] = v
		}
	case 3:
		rgb = make([]uint8, len(n.Pix))
		copy(rgb, n.Pix)
		if n.Kind == models.YBRFull {
			for i := 0; i+2 < len(rgb); i += 3 {
				rgb[i], rgb[i+1], rgb[i+2] = color.YCbCrToRGB(rgb[i], rgb[i+1], rgb[i+2])
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, n.Channels)
	}

	Enhance(rgb, n.Cols, n.Rows, p)

	lut := GammaLUT(p.BlackGamma)
	img := image.NewRGBA(image.Rect(0, 0, n.Cols, n.Rows))
	for i := 0; i < n.Rows*n.Cols; i++ {
		img.Pix[i*4] = lut[rgb[i*3]]
		img.Pix[i*4+1] = lut[rgb[i*3+1]]
		img.Pix[i*4+2] = lut[rgb[i*3+2]]
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}

// Enhance applies the profile's multipliers to an interleaved RGB buffer in place
func Enhance(rgb []uint8, width, height int, p models.EnhancementProfile) {
	if p.Brightness != 1 {
		Brightness(rgb, p.Brightness)
	}
	if p.Color != 1 {
		Color(rgb, p.Color)
	}
	if p.Contrast != 1 {
		Contrast(rgb, p.Contrast)
	}
	if p.Sharpness != 1 {
		Sharpness(rgb, width, height, p.Sharpness)
	}
}

// GammaLUT returns the black-level lookup table
//
//	lut[i] = round((i/255)^gamma * 255)
//
// so gamma < 1 lifts dark tones and gamma > 1 deepens them. Both ends are
// fixed: lut[0] = 0 and lut[255] = 255. gamma <= 0 yields the identity.
func GammaLUT(gamma float64) [256]uint8 {
	if gamma <= 0 {
		gamma = 1
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.RoundToEven(math.Pow(float64(i)/255, gamma) * 255))
	}
	return lut
}
