package tonemap

import (
	"errors"
	"testing"

	"dicomconvert/internal/models"
)

func grayRecord(kind models.Photometric, samples ...float64) *models.Record {
	return &models.Record{
		Kind:            kind,
		SamplesPerPixel: 1,
		Rows:            1,
		Cols:            len(samples),
		Samples:         samples,
	}
}

func equalBytes(t *testing.T, got, want []uint8) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Value %d: expected %d, got %d (all: %v)", i, want[i], got[i], got)
		}
	}
}

func TestMapPassThrough(t *testing.T) {
	out, err := Map(grayRecord(models.Monochrome2, 0, 50, 100))
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	equalBytes(t, out, []uint8{0, 127, 255})
}

func TestMapFlatImage(t *testing.T) {
	out, err := Map(grayRecord(models.Monochrome2, 42, 42, 42, 42))
	if err != nil {
		t.Fatalf("Map failed on flat image: %v", err)
	}
	equalBytes(t, out, []uint8{0, 0, 0, 0})
}

func TestMapInvertedPolarity(t *testing.T) {
	out, err := Map(grayRecord(models.Monochrome1, 10, 20, 30))
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if !(out[0] > out[1] && out[1] > out[2]) {
		t.Errorf("Expected magnitude order to reverse, got %v", out)
	}
	equalBytes(t, out, []uint8{255, 127, 0})
}

func TestInvert(t *testing.T) {
	values := []float64{10, 20, 30}
	Invert(values)
	want := []float64{20, 10, 0}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], values[i])
		}
	}
}

func TestMapRescale(t *testing.T) {
	rec := grayRecord(models.Monochrome2, 0, 1, 2)
	rec.Rescale = &models.Rescale{Slope: -1, Intercept: 100}

	out, err := Map(rec)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	// a negative slope flips the ramp
	equalBytes(t, out, []uint8{255, 127, 0})

	if rec.Samples[0] != 0 {
		t.Error("Map must not modify the record samples")
	}
}

func TestMapLinearWindow(t *testing.T) {
	rec := grayRecord(models.Monochrome2, 0, 100, 200, 300, 400)
	rec.Window = &models.Window{Center: 200, Width: 101}

	out, err := Map(rec)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	equalBytes(t, out, []uint8{0, 0, 128, 255, 255})
}

func TestMapWindowThenInvert(t *testing.T) {
	rec := grayRecord(models.Monochrome1, 0, 100, 200, 300, 400)
	rec.Window = &models.Window{Center: 200, Width: 101}

	out, err := Map(rec)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	// clipped values invert to the opposite extreme
	if out[0] != 255 || out[4] != 0 {
		t.Errorf("Expected windowed extremes inverted, got %v", out)
	}
}

func TestApplyWindowFunctions(t *testing.T) {
	exact := []float64{0, 150, 200, 250, 400}
	ApplyWindow(exact, models.Window{Center: 200, Width: 100, Function: "linear_exact"})
	if exact[0] != 0 || exact[4] != 255 || exact[2] != 127.5 {
		t.Errorf("Unexpected LINEAR_EXACT output %v", exact)
	}

	sigmoid := []float64{-1000, 200, 1000}
	ApplyWindow(sigmoid, models.Window{Center: 200, Width: 100, Function: FunctionSigmoid})
	if sigmoid[1] != 127.5 {
		t.Errorf("Expected sigmoid midpoint at center, got %v", sigmoid[1])
	}
	if sigmoid[0] > 1 || sigmoid[2] < 254 {
		t.Errorf("Expected sigmoid tails near the extremes, got %v", sigmoid)
	}

	invalid := []float64{1, 2, 3}
	ApplyWindow(invalid, models.Window{Center: 2, Width: 0})
	if invalid[0] != 1 || invalid[2] != 3 {
		t.Errorf("Expected a zero-width window to be ignored, got %v", invalid)
	}
}

func TestMapVOILUTPreferredOverWindow(t *testing.T) {
	rec := grayRecord(models.Monochrome2, 0, 1, 2, 3, 10)
	rec.Window = &models.Window{Center: 1000, Width: 1}
	rec.VOILUT = &models.VOILUT{FirstMapped: 1, Data: []float64{0, 50, 100}}

	out, err := Map(rec)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	// 0 clamps to the first entry, 10 to the last
	equalBytes(t, out, []uint8{0, 0, 127, 255, 255})
}

func TestMapRangeInvariant(t *testing.T) {
	samples := make([]float64, 4096)
	for i := range samples {
		samples[i] = float64((i*7919)%4096) - 1024
	}
	rec := grayRecord(models.Monochrome2, samples...)
	rec.Rescale = &models.Rescale{Slope: 1.5, Intercept: -300}
	rec.Window = &models.Window{Center: 40, Width: 350}

	out, err := Map(rec)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if len(out) != len(samples) {
		t.Fatalf("Expected shape preserved, got %d values", len(out))
	}
	seenMax := false
	for _, v := range out {
		if v == 255 {
			seenMax = true
		}
	}
	if !seenMax {
		t.Error("Expected the brightest sample to reach 255")
	}
}

func TestMapErrors(t *testing.T) {
	if _, err := Map(nil); !errors.Is(err, ErrEmptyRecord) {
		t.Errorf("Expected ErrEmptyRecord, got %v", err)
	}
	color := &models.Record{Kind: models.RGB, SamplesPerPixel: 3, Rows: 1, Cols: 1, Samples: []float64{1, 2, 3}}
	if _, err := Map(color); !errors.Is(err, ErrNotGrayscale) {
		t.Errorf("Expected ErrNotGrayscale, got %v", err)
	}
}
