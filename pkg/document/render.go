package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// ErrTooManyImages is returned when a page is asked to hold more than ImagesPerPage images
var ErrTooManyImages = errors.New("too many images for one page")

// RenderPage draws up to ImagesPerPage images onto a white A4 canvas at dpi
func RenderPage(images []image.Image, dpi float64) (*image.RGBA, error) {
	if len(images) > ImagesPerPage {
		return nil, fmt.Errorf("%w: %d", ErrTooManyImages, len(images))
	}

	size := PageSize(dpi)
	page := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.Draw(page, page.Bounds(), &image.Uniform{C: color.White}, image.Point{}, xdraw.Src)

	sizes := make([]image.Point, len(images))
	for i, img := range images {
		sizes[i] = img.Bounds().Size()
	}

	for i, pl := range PlacePage(sizes) {
		dst := pl.ToPixels(dpi)
		if dst.Empty() {
			continue
		}
		xdraw.CatmullRom.Scale(page, dst, images[i], images[i].Bounds(), xdraw.Over, nil)
	}
	return page, nil
}

// EncodePage encodes a rendered page as a JPEG image
func EncodePage(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePageSequence writes encoded pages as page_001.jpg, page_002.jpg, ...
// in outputDir and returns their paths.
func SavePageSequence(pages [][]byte, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(pages))
	for i, data := range pages {
		filename := filepath.Join(outputDir, fmt.Sprintf("page_%03d.jpg", i+1))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
