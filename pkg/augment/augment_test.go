package augment

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"ctaugment/internal/models"
)

// rampPatch fills a patch with distinct values in [0, 1) so every permutation is visible
func rampPatch(shape models.Shape, offset float64) models.Patch {
	p := models.NewPatch(shape)
	n := float64(len(p.Data))
	for i := range p.Data {
		p.Data[i] = math.Mod(float64(i)/n+offset, 1)
	}
	return p
}

func rampDataset(n int, shape models.Shape) models.Batch {
	ds := make(models.Batch, n)
	for i := range ds {
		ds[i] = rampPatch(shape, float64(i)/float64(n))
	}
	return ds
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// passThroughParams leaves intensities untouched: p' = 0*(1-p) + 1*p.
func passThroughParams() Params {
	p := DefaultParams()
	p.ShiftDark = Fixed(0)
	p.ShiftBright = Fixed(1)
	p.GradDark = Fixed(0)
	p.GradBright = Fixed(0)
	return p
}

func TestNumBatches(t *testing.T) {
	n, err := NumBatches(8, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = NumBatches(10, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "partial trailing batch is not counted")

	_, err = NumBatches(10, 0)
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestSelectBatch(t *testing.T) {
	shape := models.Shape{16, 16, 16}
	ds := rampDataset(8, shape)

	t.Run("Ranges", func(t *testing.T) {
		first, err := SelectBatch(ds, 0, 4)
		require.NoError(t, err)
		second, err := SelectBatch(ds, 1, 4)
		require.NoError(t, err)
		require.Len(t, first, 4)
		require.Len(t, second, 4)
		for i := 0; i < 4; i++ {
			assert.Equal(t, ds[i].Data, first[i].Data)
			assert.Equal(t, ds[4+i].Data, second[i].Data)
		}
	})

	t.Run("NoAliasing", func(t *testing.T) {
		batch, err := SelectBatch(ds, 0, 4)
		require.NoError(t, err)
		before := ds[0].Data[0]
		batch[0].Data[0] = 42
		assert.Equal(t, before, ds[0].Data[0])
	})

	t.Run("ShortLastBatchKeepsFinalPatch", func(t *testing.T) {
		ds := rampDataset(10, models.Shape{2, 2, 2})
		batch, err := SelectBatch(ds, 2, 4)
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, ds[9].Data, batch[1].Data)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := SelectBatch(ds, 2, 4)
		assert.True(t, errors.Is(err, ErrBatchOutOfRange))
		_, err = SelectBatch(ds, -1, 4)
		assert.True(t, errors.Is(err, ErrBatchOutOfRange))
	})
}

func TestOrientationApply(t *testing.T) {
	// 2x2x2 patch with value = index
	p := models.NewPatch(models.Shape{2, 2, 2})
	for i := range p.Data {
		p.Data[i] = float64(i)
	}

	up, err := Orientation{FlipUD: true}.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, p.At(1, 0, 0), up.At(0, 0, 0))
	assert.Equal(t, p.At(0, 1, 1), up.At(1, 1, 1))

	lr, err := Orientation{FlipLR: true}.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, p.At(0, 1, 0), lr.At(0, 0, 0))

	z, err := Orientation{FlipZ: true}.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, p.At(1, 0, 1), z.At(1, 0, 0))

	sw, err := Orientation{SwapXY: true}.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, p.At(0, 1, 1), sw.At(1, 0, 1))

	// flips happen before the swap
	all, err := Orientation{FlipUD: true, SwapXY: true}.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, up.At(1, 0, 0), all.At(0, 1, 0))

	assert.Equal(t, float64(0), p.Data[0], "Apply must not modify its input")
}

func TestOrientPatchDisabledIsIdentity(t *testing.T) {
	rng := newRand(1)
	p := rampPatch(models.Shape{6, 6, 3}, 0)
	for i := 0; i < 20; i++ {
		out, err := OrientPatch(rng, []models.Patch{p}, false)
		require.NoError(t, err)
		assert.Equal(t, p.Data, out[0].Data)
	}
}

func TestOrientationPreservesSquareShape(t *testing.T) {
	p := rampPatch(models.Shape{5, 5, 3}, 0)
	for mask := 0; mask < 16; mask++ {
		o := Orientation{
			FlipUD: mask&1 != 0,
			FlipLR: mask&2 != 0,
			FlipZ:  mask&4 != 0,
			SwapXY: mask&8 != 0,
		}
		out, err := o.Apply(p)
		require.NoError(t, err, "orientation %+v", o)
		assert.Equal(t, p.Shape, out.Shape)
		assert.ElementsMatch(t, p.Data, out.Data, "orientation must permute voxels")
	}
}

func TestOrientationSwapNonSquareFails(t *testing.T) {
	p := rampPatch(models.Shape{4, 6, 3}, 0)
	_, err := Orientation{SwapXY: true}.Apply(p)
	assert.True(t, errors.Is(err, ErrShapeChanged))

	_, err = Orientation{FlipUD: true, FlipLR: true}.Apply(p)
	assert.NoError(t, err)
}

func TestRandomGradientRange(t *testing.T) {
	rng := newRand(7)
	shapes := []models.Shape{{2, 2, 2}, {16, 16, 16}, {3, 9, 5}, {40, 40, 1}}
	for _, shape := range shapes {
		for trial := 0; trial < 10; trial++ {
			field := RandomGradient(rng, shape)
			require.Len(t, field, shape.Size())
			for _, v := range field {
				require.GreaterOrEqual(t, v, -1.0, "shape %s", shape)
				require.LessOrEqual(t, v, 1.0, "shape %s", shape)
			}
		}
	}
}

func TestRandomGradientDegenerate(t *testing.T) {
	field := RandomGradient(newRand(3), models.Shape{1, 1, 1})
	assert.Equal(t, []float64{0}, field)
}

func TestRandomGradientUsesFullRange(t *testing.T) {
	field := RandomGradient(newRand(11), models.Shape{8, 8, 8})
	lo, hi := field[0], field[0]
	for _, v := range field {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestAddRandShiftAndGradientConstant(t *testing.T) {
	params := DefaultParams()
	params.ShiftDark = Fixed(0.3)
	params.ShiftBright = Fixed(0.3)
	params.GradDark = Fixed(0)
	params.GradBright = Fixed(0)

	p := rampPatch(models.Shape{4, 4, 4}, 0.1)
	out, err := AddRandShiftAndGradient(newRand(5), []models.Patch{p}, params)
	require.NoError(t, err)
	for _, v := range out[0].Data {
		assert.InDelta(t, 0.3, v, 1e-12)
	}
}

func TestAddRandShiftAndGradientSharedAcrossGroup(t *testing.T) {
	params := DefaultParams()
	p := rampPatch(models.Shape{4, 4, 4}, 0.2)
	out, err := AddRandShiftAndGradient(newRand(9), []models.Patch{p, p.Clone()}, params)
	require.NoError(t, err)
	assert.Equal(t, out[0].Data, out[1].Data)
	assert.NotEqual(t, p.Data, out[0].Data)
}

func TestAddRandShiftAndGradientRejectsMixedShapes(t *testing.T) {
	// Same voxel count, different layout
	a := rampPatch(models.Shape{2, 3, 4}, 0.1)
	b := rampPatch(models.Shape{3, 2, 4}, 0.1)
	_, err := AddRandShiftAndGradient(newRand(3), []models.Patch{a, b}, DefaultParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchMismatch))

	sg := DrawShiftAndGradient(newRand(3), a.Shape, DefaultParams())
	assert.Equal(t, a.Shape, sg.Shape)
	_, err = sg.Apply(b)
	assert.True(t, errors.Is(err, ErrBatchMismatch))
	_, err = sg.Apply(a)
	assert.NoError(t, err)
}

func TestAddNoise(t *testing.T) {
	batch := rampDataset(3, models.Shape{4, 4, 2})
	original := batch.Clone()

	t.Run("ZeroSigma", func(t *testing.T) {
		out, err := AddNoise(newRand(1), batch, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, original, out)
		out[0].Data[0] = -5
		assert.Equal(t, original, batch, "result must not alias input")
	})

	t.Run("Sigma", func(t *testing.T) {
		big := rampDataset(4, models.Shape{32, 32, 4})
		out, err := AddNoise(newRand(2), big, 0.1, 2)
		require.NoError(t, err)
		sum, sumSq, n := 0.0, 0.0, 0.0
		for i := range big {
			for j := range big[i].Data {
				d := out[i].Data[j] - big[i].Data[j]
				sum += d
				sumSq += d * d
				n++
			}
		}
		mean := sum / n
		sd := math.Sqrt(sumSq/n - mean*mean)
		assert.InDelta(t, 0, mean, 0.01)
		assert.InDelta(t, 0.2, sd, 0.01)
		assert.Equal(t, original[0].Data, batch[0].Data)
	})

	t.Run("Negative", func(t *testing.T) {
		_, err := AddNoise(newRand(1), batch, -1, 1)
		assert.True(t, errors.Is(err, ErrInvalidParams))
	})
}

func TestAugmentBatchKeepsPairsAligned(t *testing.T) {
	shape := models.Shape{6, 6, 3}
	clean := rampDataset(8, shape)
	noisy := clean.Clone()
	for _, p := range noisy {
		for i := range p.Data {
			p.Data[i] *= 2
		}
	}
	cleanBefore, noisyBefore := clean.Clone(), noisy.Clone()

	out, err := AugmentBatch(newRand(21), []models.Batch{clean, noisy}, passThroughParams())
	require.NoError(t, err)
	require.Len(t, out, 2)

	changed := 0
	for i := range clean {
		for j := range out[0][i].Data {
			require.Equal(t, 2*out[0][i].Data[j], out[1][i].Data[j], "patch %d voxel %d", i, j)
		}
		if !assert.ObjectsAreEqual(clean[i].Data, out[0][i].Data) {
			changed++
		}
	}
	assert.Greater(t, changed, 0, "some patch should have been reoriented")
	assert.Equal(t, cleanBefore, clean)
	assert.Equal(t, noisyBefore, noisy)
}

func TestAugmentBatchIdenticalInputs(t *testing.T) {
	clean := rampDataset(4, models.Shape{5, 5, 3})
	out, err := AugmentBatch(newRand(4), []models.Batch{clean, clean.Clone()}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, out[0], out[1])
}

func TestAugmentBatchMismatch(t *testing.T) {
	a := rampDataset(4, models.Shape{2, 2, 2})
	b := rampDataset(3, models.Shape{2, 2, 2})
	_, err := AugmentBatch(newRand(1), []models.Batch{a, b}, DefaultParams())
	assert.True(t, errors.Is(err, ErrBatchMismatch))
}

func TestAugmentPatchSkipsOrientationForFlatPatches(t *testing.T) {
	// A 1xN patch is not reoriented, so with pass-through radiometry it is unchanged.
	p := rampPatch(models.Shape{1, 8, 3}, 0)
	for seed := uint64(0); seed < 10; seed++ {
		out, err := AugmentPatch(newRand(seed), []models.Patch{p}, passThroughParams())
		require.NoError(t, err)
		assert.Equal(t, p.Data, out[0].Data)
	}
}

func TestAugmentDeterministic(t *testing.T) {
	clean := rampDataset(4, models.Shape{4, 4, 4})
	a, err := AugmentBatch(newRand(99), []models.Batch{clean}, DefaultParams())
	require.NoError(t, err)
	b, err := AugmentBatch(newRand(99), []models.Batch{clean}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSelectZOut(t *testing.T) {
	p := models.NewPatch(models.Shape{2, 2, 5})
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 5; k++ {
				p.Set(i, j, k, float64(k))
			}
		}
	}
	out, err := SelectZOut(models.Batch{p}, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, models.Shape{2, 2, 3}, out[0].Shape)
	assert.Equal(t, []float64{1, 2, 3}, out[0].Data[:3])

	_, err = SelectZOut(models.Batch{p}, 5, 2)
	assert.True(t, errors.Is(err, ErrInvalidParams))
	_, err = SelectZOut(models.Batch{p}, 7, 3)
	assert.True(t, errors.Is(err, ErrBatchMismatch))
}

func TestRandShift(t *testing.T) {
	p := models.Patch{Shape: models.Shape{1, 1, 3}, Data: []float64{0, 0.5, 1}}
	out := RandShift(p, 0.2, 0.8)
	assert.InDeltaSlice(t, []float64{0.2, 0.5, 0.8}, out.Data, 1e-12)
	assert.Equal(t, []float64{0, 0.5, 1}, p.Data)
}

func TestUpperRange(t *testing.T) {
	batch := models.Batch{{Shape: models.Shape{1, 1, 4}, Data: []float64{4, 1, 3, 2}}}
	assert.Equal(t, 4.0, UpperRange(batch, 100))
	assert.Equal(t, 2.0, UpperRange(batch, 50))
	assert.Equal(t, 1.0, UpperRange(nil, 99))
	zeros := models.Batch{models.NewPatch(models.Shape{2, 2, 2})}
	assert.Equal(t, 1.0, UpperRange(zeros, 99))
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	cases := map[string]func(*Params){
		"BatchSize":     func(p *Params) { p.BatchSize = 0 },
		"Range":         func(p *Params) { p.GradBright = Range{Lo: 0.5, Hi: 0.1} },
		"Sigma":         func(p *Params) { p.NoiseSigma = -0.1 },
		"Percentile":    func(p *Params) { p.UpperPercentile = 120 },
		"DepthTooLarge": func(p *Params) { p.SizeZOut = 7 },
		"DepthOdd":      func(p *Params) { p.SizeZOut = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			assert.True(t, errors.Is(p.Validate(), ErrInvalidParams))
		})
	}
}

func TestGeneratePair(t *testing.T) {
	shape := models.Shape{8, 8, 5}
	clean := rampDataset(10, shape)
	noisy := rampDataset(10, shape)

	params := DefaultParams()
	params.BatchSize = 4
	params.UpperRange = 1
	aug, err := NewSeededAugmentor(params, 12)
	require.NoError(t, err)

	pair, err := aug.GeneratePair(clean, noisy, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pair.Index)
	require.Len(t, pair.Clean, 4)
	require.Len(t, pair.Noisy, 4)
	assert.Equal(t, models.Shape{8, 8, 1}, pair.Clean.Shape())
	assert.Equal(t, shape, pair.Noisy.Shape())
	assert.Equal(t, 1.0, pair.UpperRange)

	_, err = aug.GeneratePair(clean, noisy, 3)
	assert.True(t, errors.Is(err, ErrBatchOutOfRange))

	_, err = aug.GeneratePair(clean, noisy[:9], 0)
	assert.True(t, errors.Is(err, ErrBatchMismatch))
}

func TestNewAugmentorRejectsBadParams(t *testing.T) {
	params := DefaultParams()
	params.ShiftDark = Range{Lo: 1, Hi: 0}
	_, err := NewSeededAugmentor(params, 1)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	_, err = NewAugmentor(DefaultParams(), nil)
	assert.True(t, errors.Is(err, ErrInvalidParams))
}
