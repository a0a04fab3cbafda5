package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ctaugment/pkg/augment"
	"ctaugment/pkg/dataset"
)

type datasetFlags struct {
	clean string
	noisy string
}

func (d *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.clean, "clean", "phantom/phantom_clean.npy", "clean patches (.npy)")
	cmd.Flags().StringVar(&d.noisy, "noisy", "phantom/phantom_noisy.npy", "noisy patches (.npy)")
}

func (d *datasetFlags) load(a *app) (*dataset.Paired, error) {
	data, err := dataset.LoadPaired(d.clean, d.noisy)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("clean", d.clean).Str("noisy", d.noisy).Int("patches", data.Len()).Msg("dataset loaded")
	return data, nil
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		data   datasetFlags
		out    string
		epochs int
		noProg bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write augmented clean/noisy training batches for a number of epochs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("out") {
				out = a.cfg.Output.Dir
			}
			if !cmd.Flags().Changed("epochs") {
				epochs = a.cfg.Generation.Epochs
			}
			if epochs <= 0 {
				return errors.Errorf("epochs must be positive, got %d", epochs)
			}

			paired, err := data.load(a)
			if err != nil {
				return err
			}
			dtype, err := a.cfg.OutputDType()
			if err != nil {
				return err
			}
			gen, err := dataset.NewGenerator(paired, a.cfg.Params(),
				dataset.WithSeed(a.cfg.Generation.Seed),
				dataset.WithWorkers(a.cfg.Generation.Workers),
				dataset.WithGeneratorLogger(a.logger),
			)
			if err != nil {
				return err
			}
			manifest := gen.NewManifest(epochs, dtype)
			if err := dataset.WriteManifest(out, manifest); err != nil {
				return err
			}

			total := epochs * gen.NumBatches()
			bar := progressbar.NewOptions(total,
				progressbar.OptionSetDescription("generating"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("batches"),
				progressbar.OptionSetTheme(progressbar.ThemeASCII),
				progressbar.OptionSetVisibility(!noProg && isTerminal(cmd.ErrOrStderr())),
			)

			var written uint64
			for epoch := 0; epoch < epochs; epoch++ {
				dir := filepath.Join(out, fmt.Sprintf("epoch_%03d", epoch))
				err := gen.Epoch(cmd.Context(), epoch, func(pair augment.Pair) error {
					prefix := fmt.Sprintf("batch_%05d", pair.Index)
					if err := dataset.SavePaired(dir, prefix, pair.Clean, pair.Noisy, dtype); err != nil {
						return err
					}
					written += filesSize(dataset.PairPaths(dir, prefix))
					return bar.Add(1)
				})
				if err != nil {
					return err
				}
			}
			_ = bar.Finish()

			a.logger.Info().
				Str("run", manifest.RunID).
				Int("epochs", epochs).
				Int("batches", total).
				Str("written", humanize.Bytes(written)).
				Str("dir", out).
				Msg("augmented batches written")
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "output directory (defaults to output.dir)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "number of epochs (defaults to generation.epochs)")
	cmd.Flags().BoolVar(&noProg, "no-progress", false, "hide the progress bar")
	return cmd
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func filesSize(paths ...string) uint64 {
	var n uint64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			n += uint64(info.Size())
		}
	}
	return n
}
