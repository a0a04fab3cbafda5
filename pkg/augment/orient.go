package augment

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"ctaugment/internal/models"
)

// Orientation is one draw of the geometric augmentation. The flips are applied
// first and the in-plane axis swap last.
type Orientation struct {
	FlipUD bool // reverse axis 0
	FlipLR bool // reverse axis 1
	FlipZ  bool // reverse axis 2
	SwapXY bool // transpose axes 0 and 1
}

// DrawOrientation draws four independent fair coin flips. When enabled is false
// it returns the identity without consuming randomness.
func DrawOrientation(rng *rand.Rand, enabled bool) Orientation {
	if !enabled {
		return Orientation{}
	}
	return Orientation{
		FlipUD: rng.Intn(2) == 1,
		FlipLR: rng.Intn(2) == 1,
		FlipZ:  rng.Intn(2) == 1,
		SwapXY: rng.Intn(2) == 1,
	}
}

// Identity reports whether the orientation leaves patches unchanged
func (o Orientation) Identity() bool {
	return o == Orientation{}
}

// Apply returns a new patch holding p transformed by o.
// It fails with ErrShapeChanged when the swap is requested on a patch whose
// in-plane axes differ in length.
func (o Orientation) Apply(p models.Patch) (models.Patch, error) {
	s := p.Shape
	if o.SwapXY && !s.SquareInPlane() {
		return models.Patch{}, errors.Wrapf(ErrShapeChanged, "cannot swap in-plane axes of %s", s)
	}
	if o.Identity() {
		return p.Clone(), nil
	}

	out := models.NewPatch(s)
	for i := 0; i < s[0]; i++ {
		for j := 0; j < s[1]; j++ {
			// Source in-plane coordinates before the flips.
			a, b := i, j
			if o.SwapXY {
				a, b = j, i
			}
			if o.FlipUD {
				a = s[0] - 1 - a
			}
			if o.FlipLR {
				b = s[1] - 1 - b
			}
			dst := s.Index(i, j, 0)
			src := s.Index(a, b, 0)
			if o.FlipZ {
				for k := 0; k < s[2]; k++ {
					out.Data[dst+k] = p.Data[src+s[2]-1-k]
				}
			} else {
				copy(out.Data[dst:dst+s[2]], p.Data[src:src+s[2]])
			}
		}
	}
	return out, nil
}

// OrientPatch draws one Orientation and applies it to every patch of the group,
// so a clean patch and its noisy counterpart keep pixel correspondence.
// The input patches are left untouched.
func OrientPatch(rng *rand.Rand, group []models.Patch, enabled bool) ([]models.Patch, error) {
	o := DrawOrientation(rng, enabled)
	out := make([]models.Patch, len(group))
	for i, p := range group {
		q, err := o.Apply(p)
		if err != nil {
			return nil, errors.Wrapf(err, "orienting patch %d of group", i)
		}
		if q.Shape != p.Shape {
			return nil, errors.Wrapf(ErrShapeChanged, "patch %d: %s became %s", i, p.Shape, q.Shape)
		}
		out[i] = q
	}
	return out, nil
}
