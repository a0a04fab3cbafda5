package augment

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ctaugment/internal/models"
)

// AddNoise returns a new batch with i.i.d. zero-mean Gaussian noise of standard
// deviation sigma*upperRange added to every voxel. The input is not modified.
func AddNoise(rng *rand.Rand, batch models.Batch, sigma, upperRange float64) (models.Batch, error) {
	if sigma < 0 || upperRange < 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "noise sigma %g and upper range %g must be non-negative",
			sigma, upperRange)
	}
	out := batch.Clone()
	scale := sigma * upperRange
	if scale == 0 {
		return out, nil
	}
	normal := distuv.Normal{Mu: 0, Sigma: scale, Src: rng}
	for _, p := range out {
		for i := range p.Data {
			p.Data[i] += normal.Rand()
		}
	}
	return out, nil
}

// UpperRange returns the given percentile of all voxel values in the batch,
// the scale that relative noise levels are multiplied by. It falls back to 1
// when the batch is empty or the percentile is not positive.
func UpperRange(batch models.Batch, percentile float64) float64 {
	values := batch.Flatten()
	if len(values) == 0 {
		return 1
	}
	sort.Float64s(values)
	q := stat.Quantile(percentile/100, stat.Empirical, values, nil)
	if q <= 0 {
		return 1
	}
	return q
}
