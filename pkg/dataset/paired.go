// Package dataset stores paired clean/noisy patch datasets as NumPy files and
// turns them into streams of augmented training batches.
package dataset

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"ctaugment/internal/models"
	"ctaugment/pkg/augment"
)

// Paired holds two index-aligned patch datasets: the clean references and the
// noisy sources they correspond to.
type Paired struct {
	Clean models.Batch
	Noisy models.Batch
}

// Len returns the number of patch pairs
func (p *Paired) Len() int {
	return len(p.Clean)
}

// Shape returns the common patch shape
func (p *Paired) Shape() models.Shape {
	return p.Clean.Shape()
}

// Validate checks the shape preconditions of augmentation once for the whole
// dataset: both sides have the same length and one uniform shape, in-plane
// axes are square whenever orientation augmentation may swap them, and the
// depth matches the configured network input depth.
func (p *Paired) Validate(params augment.Params) error {
	if len(p.Clean) == 0 {
		return errors.Wrap(augment.ErrEmptyBatch, "dataset has no patches")
	}
	if len(p.Clean) != len(p.Noisy) {
		return errors.Wrapf(augment.ErrBatchMismatch, "clean has %d patches, noisy has %d",
			len(p.Clean), len(p.Noisy))
	}
	if err := p.Clean.CheckUniform(); err != nil {
		return errors.Wrap(err, "clean dataset")
	}
	if err := p.Noisy.CheckUniform(); err != nil {
		return errors.Wrap(err, "noisy dataset")
	}
	shape := p.Shape()
	if p.Noisy.Shape() != shape {
		return errors.Wrapf(augment.ErrBatchMismatch, "clean shape %s differs from noisy shape %s",
			shape, p.Noisy.Shape())
	}
	if params.AugOrient && !shape.Degenerate() && !shape.SquareInPlane() {
		return errors.Wrapf(augment.ErrShapeChanged,
			"orientation augmentation needs square in-plane patches, got %s", shape)
	}
	if params.SizeZIn > 0 && shape[2] != params.SizeZIn {
		return errors.Wrapf(augment.ErrInvalidParams, "patch depth %d does not match input depth %d",
			shape[2], params.SizeZIn)
	}
	if len(p.Clean) < params.BatchSize {
		return errors.Wrapf(augment.ErrInvalidParams, "dataset of %d patches is smaller than one batch of %d",
			len(p.Clean), params.BatchSize)
	}
	return nil
}

// LoadPaired reads the clean and noisy datasets from two .npy files
func LoadPaired(cleanPath, noisyPath string) (*Paired, error) {
	clean, err := LoadNPY(cleanPath)
	if err != nil {
		return nil, err
	}
	noisy, err := LoadNPY(noisyPath)
	if err != nil {
		return nil, err
	}
	return &Paired{Clean: clean, Noisy: noisy}, nil
}

// PairPaths returns the file names SavePaired uses for a prefix in dir
func PairPaths(dir, prefix string) (clean, noisy string) {
	return filepath.Join(dir, prefix+"_clean.npy"), filepath.Join(dir, prefix+"_noisy.npy")
}

// SavePaired writes <prefix>_clean.npy and <prefix>_noisy.npy into dir
func SavePaired(dir, prefix string, clean, noisy models.Batch, dtype DType) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	cleanPath, noisyPath := PairPaths(dir, prefix)
	if err := SaveNPY(cleanPath, clean, dtype); err != nil {
		return err
	}
	return SaveNPY(noisyPath, noisy, dtype)
}
