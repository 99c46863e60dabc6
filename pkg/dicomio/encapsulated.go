package dicomio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"dicomconvert/internal/models"
)

// DecodeEncapsulated decodes one compressed frame with the registered image
// codecs. Baseline JPEG frames arrive in YCbCr and leave as RGB, so the
// buffer is marked ColorConverted.
func DecodeEncapsulated(data []byte) (*models.PixelBuffer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedEncoding
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
	}
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()

	switch g := img.(type) {
	case *image.Gray:
		samples := make([]int, 0, rows*cols)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				samples = append(samples, int(g.GrayAt(x, y).Y))
			}
		}
		return &models.PixelBuffer{Rows: rows, Cols: cols, SamplesPerPixel: 1, Samples: samples}, nil
	case *image.Gray16:
		samples := make([]int, 0, rows*cols)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				samples = append(samples, int(g.Gray16At(x, y).Y))
			}
		}
		return &models.PixelBuffer{Rows: rows, Cols: cols, SamplesPerPixel: 1, Samples: samples}, nil
	}

	samples := make([]int, 0, rows*cols*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			samples = append(samples, int(c.R), int(c.G), int(c.B))
		}
	}
	return &models.PixelBuffer{
		Rows:            rows,
		Cols:            cols,
		SamplesPerPixel: 3,
		Samples:         samples,
		ColorConverted:  true,
	}, nil
}
