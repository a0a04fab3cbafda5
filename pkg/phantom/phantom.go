// Package phantom generates synthetic CT volumes and cuts them into patch
// datasets, so the augmentation pipeline can be exercised without real scans.
package phantom

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"ctaugment/internal/models"
	"ctaugment/pkg/augment"
)

// Ellipsoid is one component of an analytic phantom. Centers and semi-axes are
// in normalized coordinates where the volume spans [-1, 1] on every axis.
type Ellipsoid struct {
	// Intensity is added to every voxel inside the ellipsoid
	Intensity float64

	// A, B, C are the semi-axes along x, y and z
	A, B, C float64

	// X0, Y0, Z0 is the center
	X0, Y0, Z0 float64

	// Phi is the in-plane rotation in degrees
	Phi float64
}

// SheppLogan are the ellipsoids of the modified 3D Shepp-Logan head phantom
var SheppLogan = []Ellipsoid{
	{Intensity: 1.0, A: 0.6900, B: 0.920, C: 0.810},
	{Intensity: -0.8, A: 0.6624, B: 0.874, C: 0.780, Y0: -0.0184},
	{Intensity: -0.2, A: 0.1100, B: 0.310, C: 0.220, X0: 0.22, Phi: -18},
	{Intensity: -0.2, A: 0.1600, B: 0.410, C: 0.280, X0: -0.22, Phi: 18},
	{Intensity: 0.1, A: 0.2100, B: 0.250, C: 0.410, Y0: 0.35, Z0: -0.15},
	{Intensity: 0.1, A: 0.0460, B: 0.046, C: 0.050, Y0: 0.1, Z0: 0.25},
	{Intensity: 0.1, A: 0.0460, B: 0.046, C: 0.050, Y0: -0.1, Z0: 0.25},
	{Intensity: 0.1, A: 0.0460, B: 0.023, C: 0.050, X0: -0.08, Y0: -0.605},
	{Intensity: 0.1, A: 0.0230, B: 0.023, C: 0.020, Y0: -0.606},
	{Intensity: 0.1, A: 0.0230, B: 0.046, C: 0.020, X0: 0.06, Y0: -0.605},
}

// Render evaluates the ellipsoids on a grid of the given shape (rows, columns,
// slices) and normalizes the result to [0, 1].
func Render(shape models.Shape, ellipsoids []Ellipsoid) (models.Patch, error) {
	if !shape.Valid() {
		return models.Patch{}, errors.Errorf("invalid volume shape %s", shape)
	}
	vol := models.NewPatch(shape)

	coord := func(i, n int) float64 {
		if n == 1 {
			return 0
		}
		return 2*float64(i)/float64(n-1) - 1
	}

	for _, e := range ellipsoids {
		sin, cos := math.Sincos(e.Phi * math.Pi / 180)
		for i := 0; i < shape[0]; i++ {
			y := -coord(i, shape[0])
			for j := 0; j < shape[1]; j++ {
				x := coord(j, shape[1])
				// Rotate into the ellipsoid frame
				dx, dy := x-e.X0, y-e.Y0
				xr := dx*cos + dy*sin
				yr := -dx*sin + dy*cos
				inPlane := (xr*xr)/(e.A*e.A) + (yr*yr)/(e.B*e.B)
				if inPlane > 1 {
					continue
				}
				for k := 0; k < shape[2]; k++ {
					dz := coord(k, shape[2]) - e.Z0
					if inPlane+(dz*dz)/(e.C*e.C) <= 1 {
						vol.Data[shape.Index(i, j, k)] += e.Intensity
					}
				}
			}
		}
	}

	normalize(vol.Data)
	return vol, nil
}

// SheppLogan3D renders the modified Shepp-Logan phantom
func SheppLogan3D(shape models.Shape) (models.Patch, error) {
	return Render(shape, SheppLogan)
}

// normalize clamps negatives to zero and scales the maximum to one
func normalize(data []float64) {
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	if m := floats.Max(data); m > 0 {
		floats.Scale(1/m, data)
	}
}

// ExtractRegion copies the sub-volume of the given size starting at start
func ExtractRegion(vol models.Patch, start [3]int, size models.Shape) (models.Patch, error) {
	if start[0] < 0 || start[1] < 0 || start[2] < 0 {
		return models.Patch{}, errors.New("start coordinates must be non-negative")
	}
	if !size.Valid() {
		return models.Patch{}, errors.New("size dimensions must be positive")
	}
	s := vol.Shape
	if start[0]+size[0] > s[0] || start[1]+size[1] > s[1] || start[2]+size[2] > s[2] {
		return models.Patch{}, errors.New("region extends beyond volume boundaries")
	}

	region := models.NewPatch(size)
	for i := 0; i < size[0]; i++ {
		for j := 0; j < size[1]; j++ {
			src := s.Index(start[0]+i, start[1]+j, start[2])
			dst := size.Index(i, j, 0)
			copy(region.Data[dst:dst+size[2]], vol.Data[src:src+size[2]])
		}
	}
	return region, nil
}

// ExtractPatches cuts patches of the given shape out of vol on a regular grid
// with the given stride. Patches whose peak intensity is below minPeak (pure
// background) are skipped.
func ExtractPatches(vol models.Patch, patch models.Shape, stride [3]int, minPeak float64) (models.Batch, error) {
	if stride[0] <= 0 || stride[1] <= 0 || stride[2] <= 0 {
		return nil, errors.Errorf("stride %v must be positive", stride)
	}
	s := vol.Shape
	var batch models.Batch
	for i := 0; i+patch[0] <= s[0]; i += stride[0] {
		for j := 0; j+patch[1] <= s[1]; j += stride[1] {
			for k := 0; k+patch[2] <= s[2]; k += stride[2] {
				p, err := ExtractRegion(vol, [3]int{i, j, k}, patch)
				if err != nil {
					return nil, err
				}
				if floats.Max(p.Data) < minPeak {
					continue
				}
				batch = append(batch, p)
			}
		}
	}
	if len(batch) == 0 {
		return nil, errors.Errorf("no patch of shape %s fits volume %s", patch, s)
	}
	return batch, nil
}

// NoisyCopy returns clean with Gaussian noise of standard deviation sigma added,
// standing in for a low-dose reconstruction of the same object.
func NoisyCopy(rng *rand.Rand, clean models.Batch, sigma float64) (models.Batch, error) {
	return augment.AddNoise(rng, clean, sigma, 1)
}
