package batch

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Output formats
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// OutputName replaces the extension of an input file name with the one
// used for format.
func OutputName(inputName, format string) string {
	base := strings.TrimSuffix(inputName, filepath.Ext(inputName))
	if format == FormatPNG {
		return base + ".png"
	}
	return base + ".jpeg"
}

// Encode writes img to w in the given format. quality only applies to JPEG.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG, "":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeImage encodes into a temporary file next to path and renames it into
// place, so a failed encode never leaves a partial output behind.
func writeImage(path string, img image.Image, format string, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := Encode(tmp, img, format, quality); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	// CreateTemp uses 0600
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// prepareOutputDir creates dir and checks that files can be created in it
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
