package models

import (
	"strings"
)

// Photometric describes how stored samples map to displayed colour or intensity
type Photometric int

const (
	PhotometricUnknown Photometric = iota
	RGB
	YBRFull
	Monochrome2
	Monochrome1
)

// ParsePhotometric maps a PhotometricInterpretation value onto a Photometric.
// YBR_FULL_422 shares the YBRFull variant because both are full-range luma/chroma.
func ParsePhotometric(s string) Photometric {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGB":
		return RGB
	case "YBR_FULL", "YBR_FULL_422":
		return YBRFull
	case "MONOCHROME2":
		return Monochrome2
	case "MONOCHROME1":
		return Monochrome1
	default:
		return PhotometricUnknown
	}
}

func (p Photometric) String() string {
	switch p {
	case RGB:
		return "RGB"
	case YBRFull:
		return "YBR_FULL"
	case Monochrome2:
		return "MONOCHROME2"
	case Monochrome1:
		return "MONOCHROME1"
	default:
		return "UNKNOWN"
	}
}

// IsMonochrome reports whether p is one of the grayscale interpretations
func (p Photometric) IsMonochrome() bool {
	return p == Monochrome1 || p == Monochrome2
}

// Rescale holds the modality rescale parameters
type Rescale struct {
	Slope     float64
	Intercept float64
}

// Window holds one value-of-interest window
type Window struct {
	Center float64
	Width  float64

	// Function is the VOI LUT Function (LINEAR, LINEAR_EXACT or SIGMOID).
	// An empty value means LINEAR.
	Function string
}

// VOILUT is an explicit value-of-interest lookup table taken from the
// first item of the VOI LUT Sequence.
type VOILUT struct {
	// FirstMapped is the stored value mapped to Data[0]
	FirstMapped int

	// Data holds the table entries in order
	Data []float64
}

// Lookup maps v through the table, clamping to the first and last entries
func (l *VOILUT) Lookup(v float64) float64 {
	idx := int(v) - l.FirstMapped
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.Data) {
		idx = len(l.Data) - 1
	}
	return l.Data[idx]
}

// Header is the metadata read from a DICOM file before its pixel data.
// Optional tags are pointers or empty slices; nil means the tag was absent.
type Header struct {
	// FileName is the base name of the file the header was read from
	FileName string

	PhotometricInterpretation string
	SamplesPerPixel           *int
	ImageType                 []string
	NumberOfFrames            *int
	ConversionType            *string
	SOPClassUID               string

	Rows                int
	Columns             int
	BitsAllocated       int
	BitsStored          int
	PixelRepresentation int
	PlanarConfiguration int

	Rescale        *Rescale
	Windows        []Window
	VOILUTFunction string
	VOILUT         *VOILUT
}

// Samples returns the samples-per-pixel value, defaulting to 1 when absent
func (h *Header) Samples() int {
	if h.SamplesPerPixel == nil {
		return 1
	}
	return *h.SamplesPerPixel
}

// PixelBuffer is the first frame of a dataset's pixel data as plain integers
type PixelBuffer struct {
	Rows            int
	Cols            int
	SamplesPerPixel int

	// Samples is row-major and channel-interleaved
	Samples []int

	// ColorConverted is set when the codec already delivered RGB samples
	// (for example a baseline JPEG frame decoded from YBR_FULL_422).
	ColorConverted bool
}

// Dataset is a fully loaded DICOM file
type Dataset struct {
	Header *Header
	Pixels *PixelBuffer
}

// Record is one decoded image ready for tone mapping or colour assembly.
// It lives for a single conversion and is never persisted.
type Record struct {
	Kind            Photometric
	SamplesPerPixel int
	Rows            int
	Cols            int

	// Samples holds Rows*Cols*SamplesPerPixel values, row-major and
	// channel-interleaved.
	Samples []float64

	Rescale *Rescale
	Window  *Window
	VOILUT  *VOILUT
}
