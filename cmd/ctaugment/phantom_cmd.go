package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"ctaugment/internal/models"
	"ctaugment/pkg/dataset"
	"ctaugment/pkg/phantom"
)

type phantomOptions struct {
	out        string
	size       int
	depth      int
	patch      int
	patchDepth int
	stride     int
	strideZ    int
	sigma      float64
	seed       uint64
	minPeak    float64
}

func newPhantomCmd(a *app) *cobra.Command {
	opts := phantomOptions{}

	cmd := &cobra.Command{
		Use:   "phantom",
		Short: "Write a synthetic clean/noisy patch dataset cut from a 3D Shepp-Logan phantom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("patch-depth") {
				opts.patchDepth = a.cfg.Training.SizeZIn
			}
			return runPhantom(a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "phantom", "output directory")
	f.IntVar(&opts.size, "size", 64, "in-plane size of the phantom volume")
	f.IntVar(&opts.depth, "depth", 16, "number of slices of the phantom volume")
	f.IntVar(&opts.patch, "patch", 32, "in-plane patch size")
	f.IntVar(&opts.patchDepth, "patch-depth", 0, "patch depth (defaults to training.sizeZIn)")
	f.IntVar(&opts.stride, "stride", 8, "in-plane stride between patches")
	f.IntVar(&opts.strideZ, "stride-z", 2, "stride between patches along z")
	f.Float64Var(&opts.sigma, "sigma", 0.05, "standard deviation of the noise of the noisy copy")
	f.Uint64Var(&opts.seed, "seed", 1, "seed of the noise generator")
	f.Float64Var(&opts.minPeak, "min-peak", 0.05, "skip patches whose peak is below this value")
	return cmd
}

func runPhantom(a *app, opts phantomOptions) error {
	if opts.patchDepth <= 0 {
		return errors.Errorf("patch depth must be positive, got %d", opts.patchDepth)
	}
	vol, err := phantom.SheppLogan3D(models.Shape{opts.size, opts.size, opts.depth})
	if err != nil {
		return err
	}
	clean, err := phantom.ExtractPatches(vol,
		models.Shape{opts.patch, opts.patch, opts.patchDepth},
		[3]int{opts.stride, opts.stride, opts.strideZ},
		opts.minPeak)
	if err != nil {
		return err
	}
	noisy, err := phantom.NoisyCopy(rand.New(rand.NewSource(opts.seed)), clean, opts.sigma)
	if err != nil {
		return err
	}
	dtype, err := a.cfg.OutputDType()
	if err != nil {
		return err
	}
	if err := dataset.SavePaired(opts.out, "phantom", clean, noisy, dtype); err != nil {
		return err
	}

	cleanPath, noisyPath := dataset.PairPaths(opts.out, "phantom")
	a.logger.Info().
		Str("volume", vol.Shape.String()).
		Str("patch", clean.Shape().String()).
		Int("patches", len(clean)).
		Str("clean", cleanPath).
		Str("noisy", noisyPath).
		Msg("phantom dataset written")
	return nil
}
