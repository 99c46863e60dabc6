// Package decoder turns a loaded DICOM dataset into a Record with a canonical
// sample layout. It owns colour-space normalization: colour records leave
// this package as RGB in the 0..255 range.
package decoder

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"dicomconvert/internal/models"
)

var (
	// ErrMissingHeader is returned when a dataset carries no header
	ErrMissingHeader = errors.New("dataset has no header")

	// ErrEmptyPixelData is returned when the pixel buffer is absent or has no samples
	ErrEmptyPixelData = errors.New("empty pixel data")

	// ErrUnsupportedSampleLayout is returned for samples-per-pixel values other than 1 or 3
	ErrUnsupportedSampleLayout = errors.New("unsupported sample layout")

	// ErrUnexpectedShape is returned when the sample array does not match the declared layout
	ErrUnexpectedShape = errors.New("unexpected pixel array shape")
)

// Decode builds a Record from ds. The dataset is expected to have passed
// classification already; Decode does not re-check frame counts.
func Decode(ds *models.Dataset) (*models.Record, error) {
	if ds == nil || ds.Header == nil {
		return nil, ErrMissingHeader
	}
	px := ds.Pixels
	if px == nil || len(px.Samples) == 0 {
		return nil, ErrEmptyPixelData
	}

	h := ds.Header
	switch spp := h.Samples(); spp {
	case 1:
		return decodeGray(h, px)
	case 3:
		return decodeColor(h, px)
	default:
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrUnsupportedSampleLayout, spp)
	}
}

// dimensions prefers the frame geometry and falls back to the header
func dimensions(h *models.Header, px *models.PixelBuffer) (int, int) {
	rows, cols := px.Rows, px.Cols
	if rows <= 0 {
		rows = h.Rows
	}
	if cols <= 0 {
		cols = h.Columns
	}
	return rows, cols
}

func checkShape(rows, cols, spp int, px *models.PixelBuffer) error {
	if px.SamplesPerPixel != 0 && px.SamplesPerPixel != spp {
		return fmt.Errorf("%w: (%d, %d, %d), want trailing dimension %d",
			ErrUnexpectedShape, rows, cols, px.SamplesPerPixel, spp)
	}
	if rows <= 0 || cols <= 0 || len(px.Samples) != rows*cols*spp {
		return fmt.Errorf("%w: %d samples for %dx%dx%d",
			ErrUnexpectedShape, len(px.Samples), rows, cols, spp)
	}
	return nil
}

func decodeGray(h *models.Header, px *models.PixelBuffer) (*models.Record, error) {
	rows, cols := dimensions(h, px)
	if err := checkShape(rows, cols, 1, px); err != nil {
		return nil, err
	}

	kind := models.ParsePhotometric(h.PhotometricInterpretation)
	if kind != models.Monochrome1 {
		kind = models.Monochrome2
	}

	samples := make([]float64, len(px.Samples))
	for i, v := range px.Samples {
		samples[i] = float64(storedValue(v, h.BitsStored, h.PixelRepresentation == 1))
	}

	rec := &models.Record{
		Kind:            kind,
		SamplesPerPixel: 1,
		Rows:            rows,
		Cols:            cols,
		Samples:         samples,
		Rescale:         h.Rescale,
		VOILUT:          h.VOILUT,
	}
	if len(h.Windows) > 0 {
		w := h.Windows[0]
		if w.Function == "" {
			w.Function = h.VOILUTFunction
		}
		rec.Window = &w
	}
	return rec, nil
}

// storedValue keeps the low bitsStored bits of v and sign-extends them for
// signed pixel data. Values the parser already sign-extended come out unchanged.
func storedValue(v, bitsStored int, signed bool) int {
	if bitsStored <= 0 || bitsStored >= 32 {
		return v
	}
	mask := (1 << bitsStored) - 1
	v &= mask
	if signed && v&(1<<(bitsStored-1)) != 0 {
		v -= 1 << bitsStored
	}
	return v
}

func decodeColor(h *models.Header, px *models.PixelBuffer) (*models.Record, error) {
	rows, cols := dimensions(h, px)
	if err := checkShape(rows, cols, 3, px); err != nil {
		return nil, err
	}

	raw := px.Samples
	if h.PlanarConfiguration == 1 && !px.ColorConverted {
		raw = Interleave(raw, rows*cols)
	}

	samples := make([]float64, len(raw))
	for i, v := range raw {
		samples[i] = float64(v)
	}

	kind := models.ParsePhotometric(h.PhotometricInterpretation)
	if px.ColorConverted || kind != models.YBRFull {
		kind = models.RGB
	}

	bits := h.BitsStored
	if bits <= 0 {
		bits = h.BitsAllocated
	}
	if bits <= 0 {
		bits = 8
	}

	eightBit := h.BitsAllocated <= 8 && floats.Min(samples) >= 0 && floats.Max(samples) <= 255

	if kind == models.YBRFull {
		YBRToRGB(samples, float64(int(1)<<(bits-1)))
		kind = models.RGB
	}

	if !eightBit {
		StretchTo8Bit(samples)
	} else {
		for i, v := range samples {
			samples[i] = clamp8(v)
		}
	}

	return &models.Record{
		Kind:            kind,
		SamplesPerPixel: 3,
		Rows:            rows,
		Cols:            cols,
		Samples:         samples,
	}, nil
}

// Interleave converts colour-by-plane samples (RRR..GGG..BBB..) into
// colour-by-pixel order (RGBRGB..). pixels is the number of pixels per plane.
func Interleave(planar []int, pixels int) []int {
	out := make([]int, len(planar))
	for p := 0; p < 3; p++ {
		for k := 0; k < pixels; k++ {
			out[k*3+p] = planar[p*pixels+k]
		}
	}
	return out
}

// YBRToRGB converts interleaved full-range luma/chroma samples to RGB in
// place using the ITU-R BT.601 coefficients. half is the chroma offset
// (128 for 8-bit data).
func YBRToRGB(samples []float64, half float64) {
	for i := 0; i+2 < len(samples); i += 3 {
		y := samples[i]
		cb := samples[i+1] - half
		cr := samples[i+2] - half
		samples[i] = y + 1.402*cr
		samples[i+1] = y - 0.344136*cb - 0.714136*cr
		samples[i+2] = y + 1.772*cb
	}
}

// StretchTo8Bit maps the range min..max of samples linearly onto 0..255.
// A constant array becomes all zeros.
func StretchTo8Bit(samples []float64) {
	if len(samples) == 0 {
		return
	}
	lo := floats.Min(samples)
	hi := floats.Max(samples)
	floats.AddConst(-lo, samples)
	if hi-lo == 0 {
		return
	}
	floats.Scale(255/(hi-lo), samples)
}

func clamp8(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
