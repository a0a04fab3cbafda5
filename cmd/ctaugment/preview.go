package main

import (
	"github.com/spf13/cobra"

	"ctaugment/internal/models"
	"ctaugment/pkg/augment"
	"ctaugment/pkg/dataset"
	"ctaugment/pkg/visualization"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		data   datasetFlags
		batch  int
		epoch  int
		out    string
		rows   int
		scale  int
		slices string
		axis   string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the center slices of one augmented batch as a clean/noisy montage, optionally with every slice of its first pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paired, err := data.load(a)
			if err != nil {
				return err
			}
			gen, err := dataset.NewGenerator(paired, a.cfg.Params(),
				dataset.WithSeed(a.cfg.Generation.Seed),
				dataset.WithGeneratorLogger(a.logger),
			)
			if err != nil {
				return err
			}
			pair, err := gen.Batch(epoch, batch)
			if err != nil {
				return err
			}
			img, err := visualization.PairMontage(pair, rows, scale)
			if err != nil {
				return err
			}
			if err := visualization.SaveImage(img, out); err != nil {
				return err
			}
			a.logger.Info().
				Int("epoch", epoch).
				Int("batch", batch).
				Float64("upperRange", pair.UpperRange).
				Str("path", out).
				Msg("preview written")

			if slices != "" {
				return saveSlices(a, pair, slices, axis)
			}
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().IntVar(&batch, "batch", 0, "batch index")
	cmd.Flags().IntVar(&epoch, "epoch", 0, "epoch the batch is drawn for")
	cmd.Flags().StringVar(&out, "out", "preview.png", "output image (format follows the extension)")
	cmd.Flags().IntVar(&rows, "rows", 8, "maximum number of patches shown")
	cmd.Flags().IntVar(&scale, "scale", 4, "pixel magnification")
	cmd.Flags().StringVar(&slices, "slices", "", "also write every slice of the first clean and noisy patch to this directory")
	cmd.Flags().StringVar(&axis, "axis", "z", "axis the slices are taken along (x, y or z)")
	return cmd
}

// saveSlices writes the slices of the first patch of each branch with the
// window of the montage, so the images are directly comparable.
func saveSlices(a *app, pair augment.Pair, dir, axis string) error {
	if len(pair.Clean) == 0 || len(pair.Noisy) == 0 {
		return augment.ErrEmptyBatch
	}
	hi := 1.0
	if pair.UpperRange > 0 {
		hi = pair.UpperRange
	}
	var written int
	for _, branch := range []struct {
		name  string
		patch models.Patch
	}{
		{"clean", pair.Clean[0]},
		{"noisy", pair.Noisy[0]},
	} {
		paths, err := visualization.NewViewer(branch.patch).WithWindow(0, hi).SaveSliceSequence(axis, dir, branch.name)
		if err != nil {
			return err
		}
		written += len(paths)
	}
	a.logger.Info().Str("dir", dir).Str("axis", axis).Int("slices", written).Msg("slices written")
	return nil
}
