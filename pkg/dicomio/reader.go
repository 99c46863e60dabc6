// Package dicomio reads DICOM files into the pipeline's header and dataset
// types. Header reads stop before the pixel data so rejected files never
// pay for a full pixel decode.
package dicomio

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomconvert/internal/models"
)

var (
	// ErrUnsupportedEncoding is returned for compressed frames no registered codec can decode
	ErrUnsupportedEncoding = errors.New("unsupported pixel encoding")

	// ErrPixelData is returned when the pixel data element cannot be interpreted
	ErrPixelData = errors.New("unreadable pixel data")
)

// Reader loads DICOM files from disk
type Reader struct{}

// NewReader creates a new reader
func NewReader() *Reader {
	return &Reader{}
}

// ReadHeader parses path up to, but not including, the pixel data
func (r *Reader) ReadHeader(path string) (*models.Header, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parse header of %s: %w", filepath.Base(path), err)
	}
	return HeaderFromDataset(&ds, filepath.Base(path)), nil
}

// ReadDataset parses the whole file and extracts the first frame
func (r *Reader) ReadDataset(path string) (*models.Dataset, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	h := HeaderFromDataset(&ds, filepath.Base(path))
	px, err := firstFrame(&ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &models.Dataset{Header: h, Pixels: px}, nil
}

// firstFrame returns nil without error when the file has no pixel data,
// leaving the empty-buffer decision to the decoder.
func firstFrame(ds *dicom.Dataset) (*models.PixelBuffer, error) {
	el := find(ds.Elements, tag.PixelData)
	if el == nil {
		return nil, nil
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("%w: value of type %T", ErrPixelData, el.Value.GetValue())
	}
	if len(info.Frames) == 0 || info.Frames[0] == nil {
		return nil, nil
	}

	f := info.Frames[0]
	if f.IsEncapsulated() {
		ef, err := f.GetEncapsulatedFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPixelData, err)
		}
		return DecodeEncapsulated(ef.Data)
	}

	nf, err := f.GetNativeFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPixelData, err)
	}
	return nativeBuffer(nf)
}

// nativeBuffer flattens a native frame. The raw slice is used directly for
// the common integer widths; anything else goes pixel by pixel.
func nativeBuffer(nf frame.INativeFrame) (*models.PixelBuffer, error) {
	rows, cols, spp := nf.Rows(), nf.Cols(), nf.SamplesPerPixel()
	buf := &models.PixelBuffer{Rows: rows, Cols: cols, SamplesPerPixel: spp}

	switch raw := nf.RawDataSlice().(type) {
	case []uint8:
		buf.Samples = widen(raw)
	case []uint16:
		buf.Samples = widen(raw)
	case []uint32:
		buf.Samples = widen(raw)
	case []int8:
		buf.Samples = widen(raw)
	case []int16:
		buf.Samples = widen(raw)
	case []int32:
		buf.Samples = widen(raw)
	default:
		samples := make([]int, 0, rows*cols*spp)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				px, err := nf.GetPixel(x, y)
				if err != nil {
					return nil, fmt.Errorf("%w: pixel (%d,%d): %v", ErrPixelData, x, y, err)
				}
				samples = append(samples, px...)
			}
		}
		buf.Samples = samples
	}
	return buf, nil
}

func widen[T uint8 | uint16 | uint32 | int8 | int16 | int32](raw []T) []int {
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}
