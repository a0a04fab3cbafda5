package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape is the size of a 3D patch along its three axes.
// Axes 0 and 1 are the in-plane axes (rows and columns) and axis 2 is the
// slice (z) axis.
type Shape [3]int

// Size returns the number of voxels in a patch of this shape
func (s Shape) Size() int {
	return s[0] * s[1] * s[2]
}

// Index returns the offset of voxel (i, j, k) in row-major order
func (s Shape) Index(i, j, k int) int {
	return (i*s[1]+j)*s[2] + k
}

// Valid reports whether every dimension is positive
func (s Shape) Valid() bool {
	return s[0] > 0 && s[1] > 0 && s[2] > 0
}

// SquareInPlane reports whether the two in-plane axes have the same length,
// which is required for swapping them without changing the shape.
func (s Shape) SquareInPlane() bool {
	return s[0] == s[1]
}

// Degenerate reports whether the patch is flat in-plane (a row or a column),
// in which case it is not geometrically perturbed.
func (s Shape) Degenerate() bool {
	return s[0] == 1 || s[1] == 1
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s[0], s[1], s[2])
}

// Patch represents a fixed-size 3D sub-volume of a CT image volume
type Patch struct {
	// Shape holds the dimensions of the patch
	Shape Shape

	// Data is the voxel data as a 1D array in row-major order
	Data []float64
}

// NewPatch allocates a zero-filled patch of the given shape
func NewPatch(shape Shape) Patch {
	return Patch{Shape: shape, Data: make([]float64, shape.Size())}
}

// At returns the voxel at (i, j, k)
func (p Patch) At(i, j, k int) float64 {
	return p.Data[p.Shape.Index(i, j, k)]
}

// Set stores v at (i, j, k)
func (p Patch) Set(i, j, k int, v float64) {
	p.Data[p.Shape.Index(i, j, k)] = v
}

// Clone returns a deep copy of the patch
func (p Patch) Clone() Patch {
	data := make([]float64, len(p.Data))
	copy(data, p.Data)
	return Patch{Shape: p.Shape, Data: data}
}

// Batch is an ordered list of patches sharing the same shape.
// A dataset is stored as a Batch as well.
type Batch []Patch

// Shape returns the shape of the first patch, or the zero shape for an empty batch
func (b Batch) Shape() Shape {
	if len(b) == 0 {
		return Shape{}
	}
	return b[0].Shape
}

// Clone returns a deep copy of the batch
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for i, p := range b {
		out[i] = p.Clone()
	}
	return out
}

// Flatten concatenates all voxels of the batch in patch order
func (b Batch) Flatten() []float64 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float64, 0, len(b)*b[0].Shape.Size())
	for _, p := range b {
		out = append(out, p.Data...)
	}
	return out
}

// CheckUniform verifies that every patch has the same valid shape and a data
// length matching it.
func (b Batch) CheckUniform() error {
	if len(b) == 0 {
		return nil
	}
	shape := b[0].Shape
	if !shape.Valid() {
		return errors.Errorf("invalid patch shape %s", shape)
	}
	for i, p := range b {
		if p.Shape != shape {
			return errors.Errorf("patch %d has shape %s, expected %s", i, p.Shape, shape)
		}
		if len(p.Data) != shape.Size() {
			return errors.Errorf("patch %d has %d voxels, expected %d", i, len(p.Data), shape.Size())
		}
	}
	return nil
}
