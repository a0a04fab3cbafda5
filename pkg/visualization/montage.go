package visualization

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"ctaugment/pkg/augment"
)

// Montage lays out rows of images on a dark background, each image scaled by
// an integer factor with nearest-neighbour sampling and separated by gap pixels.
func Montage(rows [][]image.Image, scale, gap int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	cellW, cellH := 0, 0
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
		for _, img := range row {
			b := img.Bounds()
			cellW = max(cellW, b.Dx()*scale)
			cellH = max(cellH, b.Dy()*scale)
		}
	}

	width := cols*cellW + (cols+1)*gap
	height := len(rows)*cellH + (len(rows)+1)*gap
	dst := imaging.New(max(width, 1), max(height, 1), color.NRGBA{R: 32, G: 32, B: 32, A: 255})
	for r, row := range rows {
		for c, img := range row {
			b := img.Bounds()
			cell := imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
			pos := image.Pt(gap+c*(cellW+gap), gap+r*(cellH+gap))
			dst = imaging.Paste(dst, cell, pos)
		}
	}
	return dst
}

// PairMontage renders up to maxRows patches of a training pair, one row per
// patch with the clean target's center slice on the left and the noisy input's
// center slice on the right.
func PairMontage(pair augment.Pair, maxRows, scale int) (*image.NRGBA, error) {
	if len(pair.Clean) != len(pair.Noisy) {
		return nil, errors.Wrapf(augment.ErrBatchMismatch, "clean has %d patches, noisy has %d",
			len(pair.Clean), len(pair.Noisy))
	}
	n := len(pair.Clean)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	if n == 0 {
		return nil, augment.ErrEmptyBatch
	}

	// Shared window so clean and noisy are directly comparable
	lo, hi := 0.0, 1.0
	if pair.UpperRange > 0 {
		hi = pair.UpperRange
	}

	rows := make([][]image.Image, n)
	for i := 0; i < n; i++ {
		clean, err := NewViewer(pair.Clean[i]).WithWindow(lo, hi).CenterSlice()
		if err != nil {
			return nil, errors.Wrapf(err, "clean patch %d", i)
		}
		noisy, err := NewViewer(pair.Noisy[i]).WithWindow(lo, hi).CenterSlice()
		if err != nil {
			return nil, errors.Wrapf(err, "noisy patch %d", i)
		}
		rows[i] = []image.Image{clean, noisy}
	}
	return Montage(rows, scale, 2), nil
}

// SaveImage writes img to path; the format follows the file extension
func SaveImage(img image.Image, path string) error {
	return imaging.Save(img, path)
}
