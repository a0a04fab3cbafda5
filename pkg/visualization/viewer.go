// Package visualization renders slices of patches and clean/noisy pairs as
// images for inspecting the augmentation.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"ctaugment/internal/models"
)

// Viewer extracts 2D slices from a 3D patch
type Viewer struct {
	// patch holds the 3D voxel data
	patch models.Patch

	// lo and hi is the intensity window mapped to black and white
	lo, hi float64
}

// NewViewer creates a viewer with the intensity window [0, 1]
func NewViewer(patch models.Patch) *Viewer {
	return &Viewer{patch: patch, lo: 0, hi: 1}
}

// WithWindow sets the intensity window. Values outside it are clipped.
func (v *Viewer) WithWindow(lo, hi float64) *Viewer {
	v.lo, v.hi = lo, hi
	return v
}

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	t := (value - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice from the patch along the specified axis:
// "z" fixes axis 2 (the in-plane image), "y" fixes axis 0 and "x" fixes axis 1.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	n, err := v.axisLength(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, errors.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}
	s := v.patch.Shape

	var img *image.Gray16
	switch axis {
	case "z", "Z":
		img = image.NewGray16(image.Rect(0, 0, s[1], s[0]))
		for i := 0; i < s[0]; i++ {
			for j := 0; j < s[1]; j++ {
				img.SetGray16(j, i, v.gray(v.patch.At(i, j, position)))
			}
		}

	case "y", "Y":
		img = image.NewGray16(image.Rect(0, 0, s[1], s[2]))
		for k := 0; k < s[2]; k++ {
			for j := 0; j < s[1]; j++ {
				img.SetGray16(j, k, v.gray(v.patch.At(position, j, k)))
			}
		}

	case "x", "X":
		img = image.NewGray16(image.Rect(0, 0, s[2], s[0]))
		for i := 0; i < s[0]; i++ {
			for k := 0; k < s[2]; k++ {
				img.SetGray16(k, i, v.gray(v.patch.At(i, position, k)))
			}
		}
	}

	return img, nil
}

// CenterSlice extracts the middle slice along axis z
func (v *Viewer) CenterSlice() (*image.Gray16, error) {
	return v.ExtractSlice("z", v.patch.Shape[2]/2)
}

// axisLength returns how many slices the patch has along axis
func (v *Viewer) axisLength(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.patch.Shape[1], nil
	case "y", "Y":
		return v.patch.Shape[0], nil
	case "z", "Z":
		return v.patch.Shape[2], nil
	}
	return 0, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// SaveSliceSequence writes every slice of the patch along axis to outputDir as
// <name>_<axis>_NNN.png and returns the paths written.
func (v *Viewer) SaveSliceSequence(axis, outputDir, name string) ([]string, error) {
	n, err := v.axisLength(axis)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating slice directory")
	}

	paths := make([]string, 0, n)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.png", name, strings.ToLower(axis), pos))
		if err := imaging.Save(img, path); err != nil {
			return paths, errors.Wrapf(err, "saving %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
