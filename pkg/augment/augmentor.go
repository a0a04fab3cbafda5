// Package augment implements the patch-based training-data augmentation used to
// train the CT denoiser: mini-batch selection, random orientation, random
// radiometric shift and gradient perturbation, and additive Gaussian noise,
// producing index-aligned (clean, noisy) pairs.
//
// Every random draw comes from an explicitly passed *rand.Rand, so results are
// reproducible from a seed and separate generators can run in parallel.
package augment

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"ctaugment/internal/models"
)

// AugmentPatch applies orientation augmentation (skipped for patches that are
// flat in-plane) and then the radiometric shift and gradient to a group of
// corresponding patches. One draw of each transform is shared by the group.
func AugmentPatch(rng *rand.Rand, group []models.Patch, params Params) ([]models.Patch, error) {
	if len(group) == 0 {
		return nil, ErrEmptyBatch
	}
	var err error
	if !group[0].Shape.Degenerate() {
		group, err = OrientPatch(rng, group, params.AugOrient)
		if err != nil {
			return nil, err
		}
	}
	return AddRandShiftAndGradient(rng, group, params)
}

// AugmentBatch augments a list of parallel batches (for example clean and
// noisy). For every patch index it gathers the patch of each batch into a
// group, augments the group with AugmentPatch and stores the results in new
// batches. Draws are independent from one patch index to the next.
func AugmentBatch(rng *rand.Rand, batches []models.Batch, params Params) ([]models.Batch, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	n := len(batches[0])
	for b, batch := range batches {
		if len(batch) != n {
			return nil, errors.Wrapf(ErrBatchMismatch, "batch %d has %d patches, batch 0 has %d", b, len(batch), n)
		}
	}

	out := make([]models.Batch, len(batches))
	for b := range out {
		out[b] = make(models.Batch, n)
	}
	group := make([]models.Patch, len(batches))
	for i := 0; i < n; i++ {
		for b, batch := range batches {
			group[b] = batch[i]
		}
		augmented, err := AugmentPatch(rng, group, params)
		if err != nil {
			return nil, errors.Wrapf(err, "augmenting patch %d", i)
		}
		for b, p := range augmented {
			out[b][i] = p
		}
	}
	return out, nil
}

// Pair is one training example batch: the clean target and the noisy input.
type Pair struct {
	// Index is the batch index the pair was selected from
	Index int

	Clean models.Batch
	Noisy models.Batch

	// UpperRange is the noise scale that was used
	UpperRange float64
}

// Option configures an Augmentor
type Option func(*Augmentor)

// WithLogger sets the logger used for diagnostic events
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Augmentor) {
		a.logger = logger
	}
}

// Augmentor generates augmented clean/noisy training pairs with its own
// random generator. It is not safe for concurrent use; create one per goroutine.
type Augmentor struct {
	params Params
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewAugmentor validates params and creates an Augmentor drawing from rng.
func NewAugmentor(params Params, rng *rand.Rand, opts ...Option) (*Augmentor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.Wrap(ErrInvalidParams, "random generator is required")
	}
	a := &Augmentor{
		params: params,
		rng:    rng,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewSeededAugmentor is NewAugmentor with a generator seeded from seed
func NewSeededAugmentor(params Params, seed uint64, opts ...Option) (*Augmentor, error) {
	return NewAugmentor(params, rand.New(rand.NewSource(seed)), opts...)
}

// Params returns the augmentation parameters
func (a *Augmentor) Params() Params {
	return a.params
}

// AugmentBatch is AugmentBatch using the Augmentor's generator and parameters
func (a *Augmentor) AugmentBatch(batches ...models.Batch) ([]models.Batch, error) {
	return AugmentBatch(a.rng, batches, a.params)
}

// AddNoise is AddNoise using the Augmentor's generator
func (a *Augmentor) AddNoise(batch models.Batch, sigma, upperRange float64) (models.Batch, error) {
	a.logger.Debug().Float64("sigma", sigma*upperRange).Int("patches", len(batch)).Msg("adding white gaussian noise")
	return AddNoise(a.rng, batch, sigma, upperRange)
}

// GeneratePair builds the training pair for one batch index:
//  1. select the clean and noisy batches
//  2. augment them together so they stay aligned
//  3. add PerturbSigma noise to the clean batch and NoiseSigma noise to the noisy one
//  4. crop the clean batch to the output depth
func (a *Augmentor) GeneratePair(clean, noisy models.Batch, batchIndex int) (Pair, error) {
	if len(clean) != len(noisy) {
		return Pair{}, errors.Wrapf(ErrBatchMismatch, "clean has %d patches, noisy has %d", len(clean), len(noisy))
	}
	cleanBatch, err := SelectBatch(clean, batchIndex, a.params.BatchSize)
	if err != nil {
		return Pair{}, errors.Wrap(err, "selecting clean batch")
	}
	noisyBatch, err := SelectBatch(noisy, batchIndex, a.params.BatchSize)
	if err != nil {
		return Pair{}, errors.Wrap(err, "selecting noisy batch")
	}

	augmented, err := a.AugmentBatch(cleanBatch, noisyBatch)
	if err != nil {
		return Pair{}, err
	}
	cleanBatch, noisyBatch = augmented[0], augmented[1]

	upper := a.params.UpperRange
	if upper == 0 {
		upper = UpperRange(noisyBatch, a.params.UpperPercentile)
	}

	if cleanBatch, err = a.AddNoise(cleanBatch, a.params.PerturbSigma, upper); err != nil {
		return Pair{}, err
	}
	if noisyBatch, err = a.AddNoise(noisyBatch, a.params.NoiseSigma, upper); err != nil {
		return Pair{}, err
	}

	if a.params.SizeZIn > 0 {
		cleanBatch, err = SelectZOut(cleanBatch, a.params.SizeZIn, a.params.SizeZOut)
		if err != nil {
			return Pair{}, errors.Wrap(err, "cropping clean batch")
		}
	}

	return Pair{
		Index:      batchIndex,
		Clean:      cleanBatch,
		Noisy:      noisyBatch,
		UpperRange: upper,
	}, nil
}
