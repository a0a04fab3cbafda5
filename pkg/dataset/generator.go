package dataset

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"ctaugment/pkg/augment"
)

// Generator produces the augmented training pairs of a Paired dataset, one
// epoch at a time. Batches are computed concurrently, but every batch draws
// from its own generator seeded from (seed, epoch, batch), so the output does
// not depend on the number of workers.
type Generator struct {
	data    *Paired
	params  augment.Params
	seed    uint64
	workers int
	logger  zerolog.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithSeed sets the base seed
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) { g.seed = seed }
}

// WithWorkers sets how many batches are generated concurrently
func WithWorkers(n int) GeneratorOption {
	return func(g *Generator) { g.workers = n }
}

// WithGeneratorLogger sets the logger
func WithGeneratorLogger(logger zerolog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

// NewGenerator validates the parameters and the dataset and creates a Generator.
func NewGenerator(data *Paired, params augment.Params, opts ...GeneratorOption) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := data.Validate(params); err != nil {
		return nil, err
	}
	g := &Generator{
		data:    data,
		params:  params,
		workers: 1,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.workers <= 0 {
		return nil, errors.Errorf("workers must be positive, got %d", g.workers)
	}

	g.logger.Info().
		Int("patches", data.Len()).
		Int("batchSize", params.BatchSize).
		Int("numBatches", g.NumBatches()).
		Stringer("shape", data.Shape()).
		Msg("dataset ready")
	return g, nil
}

// NumBatches returns the number of batches per epoch
func (g *Generator) NumBatches() int {
	n, _ := augment.NumBatches(g.data.Len(), g.params.BatchSize)
	return n
}

// Batch generates a single pair for the given epoch and batch index
func (g *Generator) Batch(epoch, batchIndex int) (augment.Pair, error) {
	rng := rand.New(rand.NewSource(batchSeed(g.seed, epoch, batchIndex)))
	aug, err := augment.NewAugmentor(g.params, rng, augment.WithLogger(g.logger))
	if err != nil {
		return augment.Pair{}, err
	}
	return aug.GeneratePair(g.data.Clean, g.data.Noisy, batchIndex)
}

// Epoch generates every batch of an epoch and calls fn with the pairs in batch
// order. Up to workers batches are computed ahead of fn. The first error, from
// generation or from fn, stops the epoch and is returned.
func (g *Generator) Epoch(ctx context.Context, epoch int, fn func(augment.Pair) error) error {
	numBatches := g.NumBatches()
	window := g.workers

	for start := 0; start < numBatches; start += window {
		end := start + window
		if end > numBatches {
			end = numBatches
		}

		pairs := make([]augment.Pair, end-start)
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(g.workers)
		for b := start; b < end; b++ {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				pair, err := g.Batch(epoch, b)
				if err != nil {
					return errors.Wrapf(err, "epoch %d batch %d", epoch, b)
				}
				pairs[b-start] = pair
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		for _, pair := range pairs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(pair); err != nil {
				return err
			}
		}
	}

	g.logger.Debug().Int("epoch", epoch).Int("batches", numBatches).Msg("epoch generated")
	return nil
}

// batchSeed mixes the base seed, epoch and batch index with splitmix64 steps so
// neighbouring batches get unrelated streams.
func batchSeed(seed uint64, epoch, batch int) uint64 {
	s := splitmix64(seed)
	s = splitmix64(s ^ uint64(epoch))
	return splitmix64(s ^ uint64(batch))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
