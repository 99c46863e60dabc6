package batch

import (
	"image"

	"dicomconvert/internal/models"
	"dicomconvert/pkg/assemble"
	"dicomconvert/pkg/decoder"
	"dicomconvert/pkg/tonemap"
)

// Convert runs the per-file chain on a loaded dataset:
//
//	Decode -> Map (grayscale only) -> Assemble
//
// The returned image has the dataset's rows and columns.
func Convert(ds *models.Dataset, profile models.EnhancementProfile) (*image.RGBA, error) {
	rec, err := decoder.Decode(ds)
	if err != nil {
		return nil, err
	}

	var n *assemble.Normalized
	if rec.SamplesPerPixel == 1 {
		pix, err := tonemap.Map(rec)
		if err != nil {
			return nil, err
		}
		n = assemble.FromGray(rec.Rows, rec.Cols, pix)
	} else {
		n, err = assemble.FromColorRecord(rec)
		if err != nil {
			return nil, err
		}
	}

	return assemble.Assemble(n, profile)
}
