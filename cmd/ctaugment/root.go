package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ctaugment/pkg/config"
)

// app holds what every subcommand needs once the root flags are parsed
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger zerolog.Logger
}

// newRootCmd creates the root command and wires the subcommands.
// The configuration file is loaded and validated before any subcommand runs.
func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ctaugment",
		Short: "Training-data augmentation for CT denoisers",
		Long: `ctaugment builds augmented clean/noisy patch pairs for training a CT denoiser
used as a plug-in prior in MACE reconstruction.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = a.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = a.logFormat
			}
			a.cfg = cfg
			a.logger = config.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "ctaugment.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "console", "log format (console or json)")

	cmd.AddCommand(
		newConfigCmd(a),
		newPhantomCmd(a),
		newGenerateCmd(a),
		newPreviewCmd(a),
		newStatsCmd(a),
	)
	return cmd
}
