// Package tonemap implements the grayscale display pipeline: modality
// rescale, value-of-interest windowing, polarity inversion and normalization
// to 8 bits, always in that order.
package tonemap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"dicomconvert/internal/models"
)

var (
	// ErrNotGrayscale is returned for records with more than one sample per pixel
	ErrNotGrayscale = errors.New("tone mapping needs a single-sample record")

	// ErrEmptyRecord is returned for records without samples
	ErrEmptyRecord = errors.New("record has no samples")
)

// VOI LUT Function values
const (
	FunctionLinear      = "LINEAR"
	FunctionLinearExact = "LINEAR_EXACT"
	FunctionSigmoid     = "SIGMOID"
)

// windowed output spans the 8-bit range; normalization rescales it anyway
const (
	outMin = 0.0
	outMax = 255.0
)

// Map runs the full grayscale pipeline on rec and returns one byte per sample.
// The record is not modified.
func Map(rec *models.Record) ([]uint8, error) {
	if rec == nil || len(rec.Samples) == 0 {
		return nil, ErrEmptyRecord
	}
	if rec.SamplesPerPixel != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNotGrayscale, rec.SamplesPerPixel)
	}

	values := make([]float64, len(rec.Samples))
	copy(values, rec.Samples)

	if rec.Rescale != nil {
		ApplyRescale(values, *rec.Rescale)
	}

	switch {
	case rec.VOILUT != nil && len(rec.VOILUT.Data) > 0:
		ApplyVOILUT(values, rec.VOILUT)
	case rec.Window != nil:
		ApplyWindow(values, *rec.Window)
	}

	if rec.Kind == models.Monochrome1 {
		Invert(values)
	}

	return Normalize(values), nil
}

// ApplyRescale computes raw*slope + intercept in place
func ApplyRescale(values []float64, r models.Rescale) {
	floats.Scale(r.Slope, values)
	floats.AddConst(r.Intercept, values)
}

// ApplyVOILUT maps every value through the lookup table in place
func ApplyVOILUT(values []float64, lut *models.VOILUT) {
	for i, v := range values {
		values[i] = lut.Lookup(v)
	}
}

// ApplyWindow applies a center/width window in place. Values below the
// window become 0 and values above it 255. A window whose width is invalid
// for its function is ignored.
func ApplyWindow(values []float64, w models.Window) {
	c, width := w.Center, w.Width
	switch strings.ToUpper(strings.TrimSpace(w.Function)) {
	case FunctionLinearExact:
		if width <= 0 {
			return
		}
		lo, hi := c-width/2, c+width/2
		for i, x := range values {
			switch {
			case x <= lo:
				values[i] = outMin
			case x > hi:
				values[i] = outMax
			default:
				values[i] = ((x-c)/width+0.5)*(outMax-outMin) + outMin
			}
		}
	case FunctionSigmoid:
		if width <= 0 {
			return
		}
		for i, x := range values {
			values[i] = (outMax-outMin)/(1+math.Exp(-4*(x-c)/width)) + outMin
		}
	default:
		if width < 1 {
			return
		}
		lo := c - 0.5 - (width-1)/2
		hi := c - 0.5 + (width-1)/2
		for i, x := range values {
			switch {
			case x <= lo:
				values[i] = outMin
			case x > hi:
				values[i] = outMax
			default:
				values[i] = ((x-(c-0.5))/(width-1)+0.5)*(outMax-outMin) + outMin
			}
		}
	}
}

// Invert flips polarity in place so the largest value becomes zero
func Invert(values []float64) {
	if len(values) == 0 {
		return
	}
	maxV := floats.Max(values)
	for i, v := range values {
		values[i] = maxV - v
	}
}

// Normalize shifts values so the minimum is zero, divides by the new
// maximum and scales to 0..255, truncating toward zero. A constant input
// yields all zeros.
func Normalize(values []float64) []uint8 {
	out := make([]uint8, len(values))
	if len(values) == 0 {
		return out
	}

	shifted := make([]float64, len(values))
	copy(shifted, values)
	floats.AddConst(-floats.Min(shifted), shifted)

	maxV := floats.Max(shifted)
	if maxV == 0 {
		return out
	}
	for i, v := range shifted {
		out[i] = uint8(v / maxV * 255)
	}
	return out
}
