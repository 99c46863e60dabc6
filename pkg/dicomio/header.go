package dicomio

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomconvert/internal/models"
)

// HeaderFromDataset copies the tags the pipeline needs into a Header.
// Every optional tag is looked up once here; later stages only check for nil.
func HeaderFromDataset(ds *dicom.Dataset, fileName string) *models.Header {
	elems := ds.Elements
	h := &models.Header{FileName: fileName}

	h.PhotometricInterpretation = firstString(elems, tag.PhotometricInterpretation)
	h.SOPClassUID = firstString(elems, tag.SOPClassUID)
	h.ImageType = stringsOf(elems, tag.ImageType)
	h.VOILUTFunction = strings.ToUpper(firstString(elems, tag.VOILUTFunction))

	if v, ok := firstInt(elems, tag.SamplesPerPixel); ok {
		h.SamplesPerPixel = &v
	}
	if v, ok := firstInt(elems, tag.NumberOfFrames); ok {
		h.NumberOfFrames = &v
	}
	if find(elems, tag.ConversionType) != nil {
		ct := firstString(elems, tag.ConversionType)
		h.ConversionType = &ct
	}

	h.Rows, _ = firstInt(elems, tag.Rows)
	h.Columns, _ = firstInt(elems, tag.Columns)
	h.BitsAllocated, _ = firstInt(elems, tag.BitsAllocated)
	h.BitsStored, _ = firstInt(elems, tag.BitsStored)
	h.PixelRepresentation, _ = firstInt(elems, tag.PixelRepresentation)
	h.PlanarConfiguration, _ = firstInt(elems, tag.PlanarConfiguration)

	slope, hasSlope := firstFloat(elems, tag.RescaleSlope)
	intercept, hasIntercept := firstFloat(elems, tag.RescaleIntercept)
	if hasSlope || hasIntercept {
		if !hasSlope {
			slope = 1
		}
		h.Rescale = &models.Rescale{Slope: slope, Intercept: intercept}
	}

	centers := floatsOf(elems, tag.WindowCenter)
	widths := floatsOf(elems, tag.WindowWidth)
	for i := 0; i < len(centers) && i < len(widths); i++ {
		h.Windows = append(h.Windows, models.Window{
			Center:   centers[i],
			Width:    widths[i],
			Function: h.VOILUTFunction,
		})
	}

	h.VOILUT = voiLUT(elems)
	return h
}

// voiLUT reads the first item of the VOI LUT Sequence
func voiLUT(elems []*dicom.Element) *models.VOILUT {
	seq := find(elems, tag.VOILUTSequence)
	if seq == nil {
		return nil
	}
	items, ok := seq.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok || len(items) == 0 {
		return nil
	}
	itemElems, ok := items[0].GetValue().([]*dicom.Element)
	if !ok {
		return nil
	}

	desc := intsOf(itemElems, tag.LUTDescriptor)
	var data []int
	if el := find(itemElems, tag.LUTData); el != nil {
		switch v := el.Value.GetValue().(type) {
		case []int:
			data = v
		case []byte:
			data = make([]int, len(v)/2)
			for i := range data {
				data[i] = int(binary.LittleEndian.Uint16(v[i*2:]))
			}
		}
	}
	return LUTFromValues(desc, data)
}

// LUTFromValues builds a VOILUT from a LUT Descriptor (entries, first
// mapped value, bits) and LUT Data. It returns nil when either is unusable.
func LUTFromValues(descriptor []int, data []int) *models.VOILUT {
	if len(descriptor) < 2 || len(data) == 0 {
		return nil
	}
	entries := descriptor[0]
	if entries == 0 {
		// zero encodes 2^16 entries
		entries = 1 << 16
	}
	if entries > len(data) {
		entries = len(data)
	}
	lut := &models.VOILUT{FirstMapped: descriptor[1], Data: make([]float64, entries)}
	for i := 0; i < entries; i++ {
		lut.Data[i] = float64(data[i])
	}
	return lut
}

func find(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, el := range elems {
		if el != nil && el.Tag == t {
			return el
		}
	}
	return nil
}

func stringsOf(elems []*dicom.Element, t tag.Tag) []string {
	el := find(elems, t)
	if el == nil || el.Value == nil {
		return nil
	}
	v, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, s := range v {
		out = append(out, strings.TrimSpace(strings.TrimRight(s, "\x00")))
	}
	return out
}

func firstString(elems []*dicom.Element, t tag.Tag) string {
	v := stringsOf(elems, t)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// intsOf accepts binary integers as well as IS strings
func intsOf(elems []*dicom.Element, t tag.Tag) []int {
	el := find(elems, t)
	if el == nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		return v
	case []string:
		var out []int
		for _, s := range v {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(s, "\x00")))
			if err == nil {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

func firstInt(elems []*dicom.Element, t tag.Tag) (int, bool) {
	v := intsOf(elems, t)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// floatsOf accepts binary floats as well as DS strings
func floatsOf(elems []*dicom.Element, t tag.Tag) []float64 {
	el := find(elems, t)
	if el == nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []float64:
		return v
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out
	case []string:
		var out []float64
		for _, s := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(s, "\x00")), 64)
			if err == nil {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func firstFloat(elems []*dicom.Element, t tag.Tag) (float64, bool) {
	v := floatsOf(elems, t)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}
