// Package metrics measures how far augmented noisy batches are from their
// clean counterparts.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ctaugment/internal/models"
)

// PairMetrics holds the quality metrics of a clean/noisy pair
type PairMetrics struct {
	// RMSE is the root mean square difference between clean and noisy voxels
	RMSE float64

	// PSNR is the peak signal-to-noise ratio in dB, using the clean peak as the signal range
	PSNR float64

	// SSIM is the global structural similarity index
	SSIM float64

	// NoiseSigma is the standard deviation of noisy - clean
	NoiseSigma float64

	// EntropyDiff is the difference in Shannon entropy of the two intensity histograms
	EntropyDiff float64

	// Min and Max bound the noisy intensities
	Min, Max float64
}

// Compare computes PairMetrics between two batches of equal shape.
// Batches of different sizes give zero metrics.
func Compare(clean, noisy models.Batch) PairMetrics {
	c := clean.Flatten()
	n := noisy.Flatten()
	if len(c) != len(n) || len(c) == 0 {
		return PairMetrics{}
	}
	_, peak := MinMax(c)
	lo, hi := MinMax(n)
	return PairMetrics{
		RMSE:        RMSE(c, n),
		PSNR:        PSNR(c, n, peak),
		SSIM:        SSIM(c, n),
		NoiseSigma:  NoiseSigma(c, n),
		EntropyDiff: math.Abs(Entropy(c) - Entropy(n)),
		Min:         lo,
		Max:         hi,
	}
}

// RMSE computes the root mean square error
func RMSE(original, other []float64) float64 {
	n := len(original)
	if n != len(other) || n == 0 {
		return 0
	}
	return floats.Distance(original, other, 2) / math.Sqrt(float64(n))
}

// PSNR computes the peak signal-to-noise ratio in dB. Identical inputs give +Inf.
func PSNR(original, other []float64, peak float64) float64 {
	rmse := RMSE(original, other)
	if rmse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(peak/rmse)
}

// SSIM computes the Structural Similarity Index over the whole signal
func SSIM(original, other []float64) float64 {
	// Constants for SSIM calculation
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	n := len(original)
	if n != len(other) || n < 2 {
		return 0
	}

	muX := stat.Mean(original, nil)
	muY := stat.Mean(other, nil)
	sigmaX := stat.Variance(original, nil)
	sigmaY := stat.Variance(other, nil)
	sigmaXY := stat.Covariance(original, other, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// NoiseSigma estimates the standard deviation of the additive noise in other
func NoiseSigma(original, other []float64) float64 {
	if len(original) != len(other) || len(original) < 2 {
		return 0
	}
	diff := make([]float64, len(original))
	floats.SubTo(diff, other, original)
	return stat.StdDev(diff, nil)
}

// Entropy computes the Shannon entropy of a 256-bin intensity histogram
func Entropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	min, max := MinMax(data)
	// If all values are the same, entropy is 0
	if max <= min {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (max - min) / float64(numBins)
	for _, v := range data {
		binIdx := int((v - min) / binWidth)
		if binIdx >= numBins {
			binIdx = numBins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// MinMax returns the minimum and maximum values in a slice
func MinMax(data []float64) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}
