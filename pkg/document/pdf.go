package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
)

// ErrNoPages is returned when a PDF is requested without pages
var ErrNoPages = errors.New("no pages to write")

// newPDF places each JPEG over a full A4 page
func newPDF(pages [][]byte) (*fpdf.Fpdf, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for i, data := range pages {
		name := fmt.Sprintf("page%03d", i+1)
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, PageWidthMM, PageHeightMM, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return pdf, nil
}

// WritePDF writes one A4 page per JPEG, each stretched over the full page
func WritePDF(w io.Writer, pages [][]byte) error {
	pdf, err := newPDF(pages)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// SavePDF writes the pages to filename. A partially written file is removed.
func SavePDF(filename string, pages [][]byte) error {
	pdf, err := newPDF(pages)
	if err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(filename); err != nil {
		os.Remove(filename)
		return err
	}
	return nil
}
