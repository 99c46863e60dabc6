package dicomio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

func mustElement(t *testing.T, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("Failed to build element %v: %v", tg, err)
	}
	return el
}

func TestHeaderFromDataset(t *testing.T) {
	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.PhotometricInterpretation, []string{"MONOCHROME1"}),
		mustElement(t, tag.SamplesPerPixel, []int{1}),
		mustElement(t, tag.Rows, []int{480}),
		mustElement(t, tag.Columns, []int{640}),
		mustElement(t, tag.BitsAllocated, []int{16}),
		mustElement(t, tag.BitsStored, []int{12}),
		mustElement(t, tag.ImageType, []string{"ORIGINAL", "PRIMARY"}),
		mustElement(t, tag.NumberOfFrames, []string{"1"}),
		mustElement(t, tag.RescaleIntercept, []string{"-1024"}),
		mustElement(t, tag.WindowCenter, []string{"40", "300"}),
		mustElement(t, tag.WindowWidth, []string{"400", "1500"}),
		mustElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.6.1"}),
	}}

	h := HeaderFromDataset(ds, "patient3.dcm")

	if h.FileName != "patient3.dcm" {
		t.Errorf("Expected file name to be kept, got %q", h.FileName)
	}
	if h.PhotometricInterpretation != "MONOCHROME1" {
		t.Errorf("Unexpected photometric interpretation %q", h.PhotometricInterpretation)
	}
	if h.SamplesPerPixel == nil || *h.SamplesPerPixel != 1 {
		t.Errorf("Expected samples per pixel 1, got %v", h.SamplesPerPixel)
	}
	if h.Rows != 480 || h.Columns != 640 || h.BitsStored != 12 {
		t.Errorf("Unexpected geometry %dx%d, %d bits", h.Rows, h.Columns, h.BitsStored)
	}
	if h.NumberOfFrames == nil || *h.NumberOfFrames != 1 {
		t.Errorf("Expected one frame, got %v", h.NumberOfFrames)
	}
	if h.ConversionType != nil {
		t.Error("Expected absent conversion type to stay nil")
	}
	if h.Rescale == nil || h.Rescale.Slope != 1 || h.Rescale.Intercept != -1024 {
		t.Errorf("Expected slope to default to 1 with intercept -1024, got %+v", h.Rescale)
	}
	if len(h.Windows) != 2 || h.Windows[1].Center != 300 || h.Windows[1].Width != 1500 {
		t.Errorf("Expected two windows, got %+v", h.Windows)
	}
	if h.VOILUT != nil {
		t.Error("Expected no VOI LUT")
	}
}

func TestHeaderFromEmptyDataset(t *testing.T) {
	h := HeaderFromDataset(&dicom.Dataset{}, "x.dcm")
	if h.SamplesPerPixel != nil || h.NumberOfFrames != nil || h.Rescale != nil || h.Windows != nil {
		t.Errorf("Expected every optional field to be absent, got %+v", h)
	}
	if h.Samples() != 1 {
		t.Errorf("Expected default of one sample per pixel, got %d", h.Samples())
	}
}

func TestLUTFromValues(t *testing.T) {
	lut := LUTFromValues([]int{3, 100, 16}, []int{0, 2000, 4000, 9999})
	if lut == nil {
		t.Fatal("Expected a LUT")
	}
	if lut.FirstMapped != 100 || len(lut.Data) != 3 {
		t.Errorf("Expected 3 entries from 100, got %d entries from %d", len(lut.Data), lut.FirstMapped)
	}
	if lut.Lookup(101) != 2000 || lut.Lookup(0) != 0 || lut.Lookup(5000) != 4000 {
		t.Error("Lookup did not clamp to the table")
	}

	if LUTFromValues([]int{3}, []int{1, 2, 3}) != nil {
		t.Error("Expected nil for a short descriptor")
	}
	if LUTFromValues([]int{0, 0, 16}, nil) != nil {
		t.Error("Expected nil without data")
	}
}

func TestDecodeEncapsulatedColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}

	px, err := DecodeEncapsulated(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeEncapsulated failed: %v", err)
	}
	if px.Rows != 1 || px.Cols != 2 || px.SamplesPerPixel != 3 || !px.ColorConverted {
		t.Errorf("Unexpected buffer layout %+v", px)
	}
	want := []int{200, 10, 30, 1, 2, 3}
	for i, w := range want {
		if px.Samples[i] != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, px.Samples[i])
		}
	}
}

func TestDecodeEncapsulatedGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 40)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}

	px, err := DecodeEncapsulated(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeEncapsulated failed: %v", err)
	}
	if px.SamplesPerPixel != 1 || len(px.Samples) != 6 || px.Samples[5] != 200 {
		t.Errorf("Unexpected gray buffer %+v", px)
	}
}

func TestDecodeEncapsulatedUnknown(t *testing.T) {
	// JPEG-LS start of image marker followed by junk
	_, err := DecodeEncapsulated([]byte{0xFF, 0xD8, 0xFF, 0xF7, 0x00, 0x01})
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("Expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.dcm")
	if err := os.WriteFile(path, []byte("not a dicom file"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := NewReader().ReadHeader(path); err == nil {
		t.Error("Expected an error for a truncated file")
	}
	if _, err := NewReader().ReadHeader(filepath.Join(dir, "missing.dcm")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

// writeMonochrome1 writes a 2x3 MONOCHROME1 image with 12 of 16 bits stored
// and a four-entry VOI LUT
func writeMonochrome1(t *testing.T, path string) {
	t.Helper()
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.6.1"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5.6.7"}),
		mustElement(t, tag.TransferSyntaxUID, []string{uid.ExplicitVRLittleEndian}),
		mustElement(t, tag.ImageType, []string{"ORIGINAL", "PRIMARY"}),
		mustElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.6.1"}),
		mustElement(t, tag.SamplesPerPixel, []int{1}),
		mustElement(t, tag.PhotometricInterpretation, []string{"MONOCHROME1"}),
		mustElement(t, tag.NumberOfFrames, []string{"1"}),
		mustElement(t, tag.Rows, []int{2}),
		mustElement(t, tag.Columns, []int{3}),
		mustElement(t, tag.BitsAllocated, []int{16}),
		mustElement(t, tag.BitsStored, []int{12}),
		mustElement(t, tag.PixelRepresentation, []int{0}),
		mustElement(t, tag.VOILUTSequence, [][]*dicom.Element{{
			mustElement(t, tag.LUTDescriptor, []int{4, 0, 16}),
			mustElement(t, tag.LUTData, []int{0, 100, 200, 300}),
		}}),
		mustElement(t, tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{
				NativeData: &frame.NativeFrame[uint16]{
					InternalBitsPerSample:   16,
					InternalRows:            2,
					InternalCols:            3,
					InternalSamplesPerPixel: 1,
					RawData:                 []uint16{0, 1, 2, 3, 1000, 4000},
				},
			}},
		}),
	}}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := dicom.Write(f, ds); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestReadHeaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us1.dcm")
	writeMonochrome1(t, path)

	h, err := NewReader().ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if h.FileName != "us1.dcm" || h.PhotometricInterpretation != "MONOCHROME1" {
		t.Errorf("Unexpected header %+v", h)
	}
	if h.Rows != 2 || h.Columns != 3 || h.BitsAllocated != 16 || h.BitsStored != 12 {
		t.Errorf("Unexpected geometry %dx%d, %d/%d bits", h.Rows, h.Columns, h.BitsStored, h.BitsAllocated)
	}
	if h.VOILUT == nil {
		t.Fatal("Expected the VOI LUT from the sequence")
	}
	if h.VOILUT.FirstMapped != 0 || len(h.VOILUT.Data) != 4 || h.VOILUT.Data[3] != 300 {
		t.Errorf("Expected LUT 0..300 from 0, got %+v", h.VOILUT)
	}
}

func TestReadDatasetNativeFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us1.dcm")
	writeMonochrome1(t, path)

	ds, err := NewReader().ReadDataset(path)
	if err != nil {
		t.Fatalf("ReadDataset failed: %v", err)
	}
	px := ds.Pixels
	if px == nil {
		t.Fatal("Expected pixel data")
	}
	if px.Rows != 2 || px.Cols != 3 || px.SamplesPerPixel != 1 || px.ColorConverted {
		t.Errorf("Unexpected buffer layout %+v", px)
	}
	want := []int{0, 1, 2, 3, 1000, 4000}
	if len(px.Samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(px.Samples))
	}
	for i, w := range want {
		if px.Samples[i] != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, px.Samples[i])
		}
	}
	if ds.Header.VOILUT == nil || ds.Header.VOILUT.Data[1] != 100 {
		t.Errorf("Expected the VOI LUT on the full read, got %+v", ds.Header.VOILUT)
	}
}
