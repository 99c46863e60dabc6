package document

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
)

// DefaultDPI is the resolution pages are rendered at
const DefaultDPI = 150.0

// ErrNoImages is returned when a report is built from an empty image list
var ErrNoImages = errors.New("no images for report")

// Options controls report rendering
type Options struct {
	// DPI of the rendered pages; DefaultDPI when zero
	DPI float64

	// Quality of the page JPEGs
	Quality int

	// PagesDir, when set, also receives the page images
	PagesDir string
}

// Report describes a built report
type Report struct {
	PDFPath   string
	PagePaths []string
	Pages     int
}

// Build lays the images at imagePaths out on A4 pages, in the given order,
// and writes the PDF to pdfPath.
func Build(imagePaths []string, pdfPath string, opts Options) (*Report, error) {
	if len(imagePaths) == 0 {
		return nil, ErrNoImages
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}

	var encoded [][]byte
	for _, chunk := range Paginate(len(imagePaths)) {
		images := make([]image.Image, 0, len(chunk))
		for _, idx := range chunk {
			img, err := loadImage(imagePaths[idx])
			if err != nil {
				return nil, err
			}
			images = append(images, img)
		}

		page, err := RenderPage(images, opts.DPI)
		if err != nil {
			return nil, err
		}
		data, err := EncodePage(page, opts.Quality)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, data)
	}

	report := &Report{PDFPath: pdfPath, Pages: len(encoded)}
	if opts.PagesDir != "" {
		paths, err := SavePageSequence(encoded, opts.PagesDir)
		if err != nil {
			return nil, fmt.Errorf("save pages: %w", err)
		}
		report.PagePaths = paths
	}

	if err := os.MkdirAll(filepath.Dir(pdfPath), 0755); err != nil {
		return nil, err
	}
	if err := SavePDF(pdfPath, encoded); err != nil {
		return nil, fmt.Errorf("write %s: %w", pdfPath, err)
	}
	return report, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
