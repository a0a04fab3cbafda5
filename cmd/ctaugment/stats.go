package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ctaugment/internal/models"
	"ctaugment/pkg/augment"
	"ctaugment/pkg/dataset"
	"ctaugment/pkg/metrics"
	"ctaugment/pkg/visualization"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			return cellStyle
		})
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		data      datasetFlags
		augmented bool
		batch     int
		report    string
		histogram string
		bins      int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print quality metrics of a clean/noisy dataset or of one augmented batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paired, err := data.load(a)
			if err != nil {
				return err
			}

			source := "dataset"
			clean, noisy := paired.Clean, paired.Noisy
			var gen *dataset.Generator
			if augmented || report != "" {
				gen, err = dataset.NewGenerator(paired, a.cfg.Params(),
					dataset.WithSeed(a.cfg.Generation.Seed),
					dataset.WithWorkers(a.cfg.Generation.Workers),
					dataset.WithGeneratorLogger(a.logger),
				)
				if err != nil {
					return err
				}
			}
			if augmented {
				pair, err := gen.Batch(0, batch)
				if err != nil {
					return err
				}
				clean, noisy, err = alignedPair(pair, a.cfg.Params())
				if err != nil {
					return err
				}
				source = fmt.Sprintf("batch %d", batch)
			}

			m := metrics.Compare(clean, noisy)
			t := newTable("metric", "value").
				Row("source", source).
				Row("patches", fmt.Sprint(len(clean))).
				Row("shape", clean.Shape().String()).
				Row("rmse", fmt.Sprintf("%.6f", m.RMSE)).
				Row("psnr", fmt.Sprintf("%.2f dB", m.PSNR)).
				Row("ssim", fmt.Sprintf("%.4f", m.SSIM)).
				Row("noise sigma", fmt.Sprintf("%.6f", m.NoiseSigma)).
				Row("entropy diff", fmt.Sprintf("%.4f", m.EntropyDiff)).
				Row("noisy range", fmt.Sprintf("[%.4f, %.4f]", m.Min, m.Max))
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())

			if histogram != "" {
				err := visualization.SaveHistogram(histogram, source, bins,
					visualization.Series{Name: "clean", Values: clean.Flatten()},
					visualization.Series{Name: "noisy", Values: noisy.Flatten()})
				if err != nil {
					return err
				}
				a.logger.Info().Str("path", histogram).Msg("histogram written")
			}

			if report != "" {
				return writeReport(cmd, a, gen, report)
			}
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().BoolVar(&augmented, "augmented", false, "measure one augmented batch instead of the raw dataset")
	cmd.Flags().IntVar(&batch, "batch", 0, "batch index used with --augmented")
	cmd.Flags().StringVar(&report, "report", "", "write per-batch metrics of epoch 0 to this CSV file")
	cmd.Flags().StringVar(&histogram, "histogram", "", "write an intensity histogram to this image file")
	cmd.Flags().IntVar(&bins, "bins", 64, "histogram bins")
	return cmd
}

// alignedPair crops the noisy input to the depth of the clean target so the
// two can be compared voxel by voxel.
func alignedPair(pair augment.Pair, params augment.Params) (models.Batch, models.Batch, error) {
	if params.SizeZIn == 0 {
		return pair.Clean, pair.Noisy, nil
	}
	noisy, err := augment.SelectZOut(pair.Noisy, params.SizeZIn, params.SizeZOut)
	if err != nil {
		return nil, nil, err
	}
	return pair.Clean, noisy, nil
}

func writeReport(cmd *cobra.Command, a *app, gen *dataset.Generator, path string) error {
	var r metrics.Report
	err := gen.Epoch(cmd.Context(), 0, func(pair augment.Pair) error {
		clean, noisy, err := alignedPair(pair, a.cfg.Params())
		if err != nil {
			return err
		}
		r.Add(metrics.NewBatchRecord(0, pair.Index, pair.UpperRange, metrics.Compare(clean, noisy)))
		return nil
	})
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	means, err := r.Means()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(means))
	for name := range means {
		names = append(names, name)
	}
	sort.Strings(names)
	t := newTable("mean over batches", "value")
	for _, name := range names {
		t.Row(name, fmt.Sprintf("%.6f", means[name]))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	a.logger.Info().Str("path", path).Int("batches", r.Len()).Msg("report written")
	return nil
}
