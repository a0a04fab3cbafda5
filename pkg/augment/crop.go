package augment

import (
	"github.com/pkg/errors"

	"ctaugment/internal/models"
)

// SelectZOut returns the centered sub-volume of depth zOut along axis 2 of every
// patch in a batch of depth zIn. The semi-2D network predicts only the central
// slices of its input stack, so the clean target is cropped this way.
func SelectZOut(batch models.Batch, zIn, zOut int) (models.Batch, error) {
	if zOut <= 0 || zOut > zIn || (zIn-zOut)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "cannot crop depth %d to %d", zIn, zOut)
	}
	out := make(models.Batch, len(batch))
	start := (zIn - zOut) / 2
	for n, p := range batch {
		s := p.Shape
		if s[2] != zIn {
			return nil, errors.Wrapf(ErrBatchMismatch, "patch %d has depth %d, expected %d", n, s[2], zIn)
		}
		q := models.NewPatch(models.Shape{s[0], s[1], zOut})
		for i := 0; i < s[0]; i++ {
			for j := 0; j < s[1]; j++ {
				src := s.Index(i, j, start)
				copy(q.Data[q.Shape.Index(i, j, 0):q.Shape.Index(i, j, 0)+zOut], p.Data[src:src+zOut])
			}
		}
		out[n] = q
	}
	return out, nil
}
