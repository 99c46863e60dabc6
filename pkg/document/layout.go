// Package document lays converted images out on A4 pages and writes them
// as page images and a PDF report.
package document

import (
	"image"
)

// A4 page geometry in millimetres
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
)

const (
	// ImagesPerPage is the most images one page holds
	ImagesPerPage = 8

	// Columns per page
	Columns = 2

	// HorizontalSpacingMM separates columns and the page edges
	HorizontalSpacingMM = 5.0

	// SourceDPI converts image pixels to millimetres before fitting
	SourceDPI = 96.0
)

const mmPerInch = 25.4

// Placement is the rectangle an image occupies on a page, in millimetres
// from the top-left corner.
type Placement struct {
	X, Y          float64
	Width, Height float64
}

// Grid returns the row count and vertical spacing used for a page holding n
// images. Pages with six or fewer images use three taller rows.
func Grid(n int) (rows int, verticalSpacingMM float64) {
	if n <= 6 {
		return 3, 18
	}
	return 4, 7
}

// Paginate splits n images into consecutive page chunks of at most
// ImagesPerPage indices each.
func Paginate(n int) [][]int {
	var pages [][]int
	for start := 0; start < n; start += ImagesPerPage {
		end := start + ImagesPerPage
		if end > n {
			end = n
		}
		page := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			page = append(page, i)
		}
		pages = append(pages, page)
	}
	return pages
}

// PlacePage fits images of the given pixel sizes into the cells of one page,
// filling rows left to right. Each image keeps its aspect ratio, is centred
// horizontally in its cell and sits a quarter of the free height below the
// cell top.
func PlacePage(sizes []image.Point) []Placement {
	rows, vSpacing := Grid(len(sizes))
	cellW := (PageWidthMM - (Columns+1)*HorizontalSpacingMM) / Columns
	cellH := (PageHeightMM - float64(rows+1)*vSpacing) / float64(rows)

	out := make([]Placement, len(sizes))
	for i, sz := range sizes {
		if sz.X <= 0 || sz.Y <= 0 {
			continue
		}
		wMM := float64(sz.X) / SourceDPI * mmPerInch
		hMM := float64(sz.Y) / SourceDPI * mmPerInch

		scale := min(cellW/wMM, cellH/hMM)
		newW, newH := wMM*scale, hMM*scale

		col, row := i%Columns, i/Columns
		out[i] = Placement{
			X:      HorizontalSpacingMM + float64(col)*(cellW+HorizontalSpacingMM) + (cellW-newW)/2,
			Y:      vSpacing + float64(row)*(cellH+vSpacing) + (cellH-newH)/4,
			Width:  newW,
			Height: newH,
		}
	}
	return out
}

// ToPixels converts a placement to a pixel rectangle at dpi
func (p Placement) ToPixels(dpi float64) image.Rectangle {
	px := func(mm float64) int { return int(mm/mmPerInch*dpi + 0.5) }
	return image.Rect(px(p.X), px(p.Y), px(p.X+p.Width), px(p.Y+p.Height))
}

// PageSize returns the A4 page size in pixels at dpi
func PageSize(dpi float64) image.Point {
	return image.Pt(int(PageWidthMM/mmPerInch*dpi+0.5), int(PageHeightMM/mmPerInch*dpi+0.5))
}
