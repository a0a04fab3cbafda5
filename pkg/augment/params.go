package augment

import (
	"github.com/pkg/errors"
)

// Range is a closed interval [Lo, Hi] that a uniform random value is drawn from.
// Lo == Hi yields that value exactly.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Fixed returns the degenerate range [v, v]
func Fixed(v float64) Range {
	return Range{Lo: v, Hi: v}
}

// Params holds the training-data augmentation parameters.
// These control batch selection, orientation and radiometric augmentation,
// noise levels and the asymmetric clean/noisy depth cropping.
type Params struct {
	// BatchSize is the number of patches per mini-batch.
	BatchSize int `yaml:"batchSize"`

	// AugOrient enables random flips and the in-plane axis swap.
	AugOrient bool `yaml:"augOrient"`

	// ShiftDark is the range the intensity 0 is shifted to.
	ShiftDark Range `yaml:"shiftDark"`

	// ShiftBright is the range the intensity 1 is shifted to.
	ShiftBright Range `yaml:"shiftBright"`

	// GradDark scales the random gradient field applied to dark voxels.
	GradDark Range `yaml:"gradDark"`

	// GradBright scales the random gradient field applied to bright voxels.
	GradBright Range `yaml:"gradBright"`

	// PerturbSigma is the noise standard deviation added to the clean branch,
	// relative to the upper range.
	PerturbSigma float64 `yaml:"perturbSigma"`

	// NoiseSigma is the noise standard deviation added to the noisy branch,
	// relative to the upper range.
	NoiseSigma float64 `yaml:"noiseSigma"`

	// UpperRange is the scale noise sigmas are multiplied by. Zero means it is
	// computed from each batch with UpperPercentile.
	UpperRange float64 `yaml:"upperRange"`

	// UpperPercentile is the percentile (0, 100] of voxel values used as the
	// upper range when UpperRange is zero.
	UpperPercentile float64 `yaml:"upperPercentile"`

	// SizeZIn is the depth (axis 2) of the input patches. Zero disables cropping.
	SizeZIn int `yaml:"sizeZIn"`

	// SizeZOut is the depth the clean branch is cropped to.
	SizeZOut int `yaml:"sizeZOut"`
}

// DefaultParams returns the parameters used to train the CT denoiser
func DefaultParams() Params {
	return Params{
		BatchSize:       128,
		AugOrient:       true,
		ShiftDark:       Range{Lo: -0.1, Hi: 0.1},
		ShiftBright:     Range{Lo: 0.9, Hi: 1.1},
		GradDark:        Range{Lo: 0, Hi: 0.1},
		GradBright:      Range{Lo: 0, Hi: 0.1},
		PerturbSigma:    0.0,
		NoiseSigma:      0.05,
		UpperRange:      0,
		UpperPercentile: 99.9,
		SizeZIn:         5,
		SizeZOut:        1,
	}
}

// Validate checks the parameters once so the augmentation loop does not have to.
func (p Params) Validate() error {
	if p.BatchSize <= 0 {
		return errors.Wrapf(ErrInvalidParams, "batch size must be positive, got %d", p.BatchSize)
	}
	ranges := []struct {
		name string
		r    Range
	}{
		{"shift dark", p.ShiftDark},
		{"shift bright", p.ShiftBright},
		{"gradient dark", p.GradDark},
		{"gradient bright", p.GradBright},
	}
	for _, nr := range ranges {
		if nr.r.Hi < nr.r.Lo {
			return errors.Wrapf(ErrInvalidParams, "%s range [%g, %g] has hi < lo", nr.name, nr.r.Lo, nr.r.Hi)
		}
	}
	if p.PerturbSigma < 0 || p.NoiseSigma < 0 {
		return errors.Wrapf(ErrInvalidParams, "noise sigmas must be non-negative, got perturb=%g noise=%g",
			p.PerturbSigma, p.NoiseSigma)
	}
	if p.UpperRange < 0 {
		return errors.Wrapf(ErrInvalidParams, "upper range must be non-negative, got %g", p.UpperRange)
	}
	if p.UpperRange == 0 && (p.UpperPercentile <= 0 || p.UpperPercentile > 100) {
		return errors.Wrapf(ErrInvalidParams, "upper percentile must be in (0, 100], got %g", p.UpperPercentile)
	}
	if p.SizeZIn < 0 {
		return errors.Wrapf(ErrInvalidParams, "input depth must be non-negative, got %d", p.SizeZIn)
	}
	if p.SizeZIn > 0 {
		if p.SizeZOut <= 0 || p.SizeZOut > p.SizeZIn {
			return errors.Wrapf(ErrInvalidParams, "output depth %d must be in [1, %d]", p.SizeZOut, p.SizeZIn)
		}
		if (p.SizeZIn-p.SizeZOut)%2 != 0 {
			return errors.Wrapf(ErrInvalidParams, "input depth %d and output depth %d must differ by an even number",
				p.SizeZIn, p.SizeZOut)
		}
	}
	return nil
}
