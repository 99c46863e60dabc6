package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dicomconvert/internal/models"
	"dicomconvert/pkg/batch"
	"dicomconvert/pkg/config"
)

// gradientSource returns the same small grayscale dataset for every path
type gradientSource struct{}

func (gradientSource) dataset() *models.Dataset {
	spp := 1
	samples := make([]int, 16*12)
	for i := range samples {
		samples[i] = i
	}
	return &models.Dataset{
		Header: &models.Header{
			PhotometricInterpretation: "MONOCHROME2",
			SamplesPerPixel:           &spp,
			Rows:                      12,
			Columns:                   16,
			BitsAllocated:             8,
			BitsStored:                8,
		},
		Pixels: &models.PixelBuffer{Rows: 12, Cols: 16, SamplesPerPixel: 1, Samples: samples},
	}
}

func (g gradientSource) ReadHeader(path string) (*models.Header, error) {
	return g.dataset().Header, nil
}

func (g gradientSource) ReadDataset(path string) (*models.Dataset, error) {
	return g.dataset(), nil
}

func writeArchive(t *testing.T, members ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "p1.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("not really DICOM"))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return p
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Orthanc.WorkDir = filepath.Join(t.TempDir(), "patients")
	cfg.Output.PagesDir = ""
	return cfg
}

func TestProcessArchive(t *testing.T) {
	zipPath := writeArchive(t,
		"20240105T103000DOE/Unknown Study/US/IM000001",
		"20240105T103000DOE/Unknown Study/US/IM000002",
	)
	cfg := testConfig(t)

	res, err := NewProcessor(cfg, nil, batch.WithSource(gradientSource{})).ProcessArchive(context.Background(), zipPath)
	if err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	if res.Patient != "DOE" || res.Summary.Converted != 2 {
		t.Errorf("Expected 2 images for DOE, got %s with %+v", res.Patient, res.Summary)
	}

	layout := NewLayout(cfg.Orthanc.WorkDir, "DOE")
	if _, err := os.Stat(filepath.Join(layout.ReportDir, "DOE.pdf")); err != nil {
		t.Errorf("Expected the report: %v", err)
	}
	if res.Report == nil || res.Report.Pages != 1 {
		t.Errorf("Expected a one-page report, got %+v", res.Report)
	}

	for _, dir := range []string{layout.DicomDir, layout.ImagesDir} {
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("Expected %s to be cleaned up, found %d entries", dir, len(entries))
		}
	}
}

func TestProcessArchiveKeepsIntermediate(t *testing.T) {
	zipPath := writeArchive(t, "20240105T103000ROE/US/IM1")
	cfg := testConfig(t)
	cfg.Output.KeepIntermediate = true

	if _, err := NewProcessor(cfg, nil, batch.WithSource(gradientSource{})).ProcessArchive(context.Background(), zipPath); err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	layout := NewLayout(cfg.Orthanc.WorkDir, "ROE")
	if _, err := os.Stat(filepath.Join(layout.ImagesDir, "ROE0.jpeg")); err != nil {
		t.Errorf("Expected the converted image to be kept: %v", err)
	}
}

func TestProcessArchiveNamesReport(t *testing.T) {
	zipPath := writeArchive(t, "20240105T103000ROE/US/IM1")
	cfg := testConfig(t)
	cfg.Output.PDFName = "{patient}_report.pdf"

	res, err := NewProcessor(cfg, nil, batch.WithSource(gradientSource{})).ProcessArchive(context.Background(), zipPath)
	if err != nil {
		t.Fatalf("ProcessArchive failed: %v", err)
	}
	want := filepath.Join(NewLayout(cfg.Orthanc.WorkDir, "ROE").ReportDir, "ROE_report.pdf")
	if res.Report.PDFPath != want {
		t.Errorf("Expected report at %s, got %s", want, res.Report.PDFPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected the report file: %v", err)
	}
}

func TestProcessArchiveNothingConverted(t *testing.T) {
	zipPath := writeArchive(t, "20240105T103000ZOE/US/IM1")
	cfg := testConfig(t)

	// the real reader rejects the placeholder bytes
	res, err := NewProcessor(cfg, nil).ProcessArchive(context.Background(), zipPath)
	if !errors.Is(err, ErrNothingConverted) {
		t.Fatalf("Expected ErrNothingConverted, got %v", err)
	}
	if res.Summary.Skipped != 1 {
		t.Errorf("Expected the file to be skipped, got %+v", res.Summary)
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		patient string
		want    string
	}{
		{"DOE", "DOE"},
		{"A/B", "A_B"},
		{"", "p1"},
		{"..", "p1"},
	}
	for _, tt := range tests {
		if got := safeName(tt.patient, "/zips/p1.zip"); got != tt.want {
			t.Errorf("safeName(%q): expected %q, got %q", tt.patient, tt.want, got)
		}
	}
}
