// Package config provides configuration loading and management for ctaugment.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"ctaugment/pkg/augment"
	"ctaugment/pkg/dataset"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Training parameters
	Training struct {
		// BatchSize is the number of patches per mini-batch
		BatchSize int `yaml:"batchSize"`

		// SizeZIn is the depth of the network input patches
		SizeZIn int `yaml:"sizeZIn"`

		// SizeZOut is the depth of the network output (clean target)
		SizeZOut int `yaml:"sizeZOut"`
	} `yaml:"training"`

	// Augmentation parameters
	Augmentation struct {
		// Orient enables random flips and axis swaps
		Orient bool `yaml:"orient"`

		ShiftDark   augment.Range `yaml:"shiftDark"`
		ShiftBright augment.Range `yaml:"shiftBright"`
		GradDark    augment.Range `yaml:"gradDark"`
		GradBright  augment.Range `yaml:"gradBright"`
	} `yaml:"augmentation"`

	// Noise parameters
	Noise struct {
		// PerturbSigma is the relative noise level of the clean branch
		PerturbSigma float64 `yaml:"perturbSigma"`

		// NoiseSigma is the relative noise level of the noisy branch
		NoiseSigma float64 `yaml:"noiseSigma"`

		// UpperRange fixes the noise scale; 0 derives it from each batch
		UpperRange float64 `yaml:"upperRange"`

		// UpperPercentile is the percentile of voxel values used as the scale
		UpperPercentile float64 `yaml:"upperPercentile"`
	} `yaml:"noise"`

	// Generation parameters
	Generation struct {
		// Seed is the base seed every batch generator is derived from
		Seed uint64 `yaml:"seed"`

		// Workers specifies how many batches are generated concurrently
		Workers int `yaml:"workers"`

		// Epochs is the number of passes over the dataset
		Epochs int `yaml:"epochs"`
	} `yaml:"generation"`

	// Output parameters
	Output struct {
		// Dir is where generated batches are written
		Dir string `yaml:"dir"`

		// DType is the element type of written .npy files: float16, float32 or float64
		DType string `yaml:"dtype"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is a zerolog level name
		Level string `yaml:"level"`

		// Format is either "console" or "json"
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	params := augment.DefaultParams()

	cfg.Training.BatchSize = params.BatchSize
	cfg.Training.SizeZIn = params.SizeZIn
	cfg.Training.SizeZOut = params.SizeZOut

	cfg.Augmentation.Orient = params.AugOrient
	cfg.Augmentation.ShiftDark = params.ShiftDark
	cfg.Augmentation.ShiftBright = params.ShiftBright
	cfg.Augmentation.GradDark = params.GradDark
	cfg.Augmentation.GradBright = params.GradBright

	cfg.Noise.PerturbSigma = params.PerturbSigma
	cfg.Noise.NoiseSigma = params.NoiseSigma
	cfg.Noise.UpperRange = params.UpperRange
	cfg.Noise.UpperPercentile = params.UpperPercentile

	cfg.Generation.Seed = 0
	cfg.Generation.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Generation.Epochs = 1

	cfg.Output.Dir = "augmented"
	cfg.Output.DType = "float32"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Params converts the configuration into augmentation parameters
func (c *Config) Params() augment.Params {
	return augment.Params{
		BatchSize:       c.Training.BatchSize,
		AugOrient:       c.Augmentation.Orient,
		ShiftDark:       c.Augmentation.ShiftDark,
		ShiftBright:     c.Augmentation.ShiftBright,
		GradDark:        c.Augmentation.GradDark,
		GradBright:      c.Augmentation.GradBright,
		PerturbSigma:    c.Noise.PerturbSigma,
		NoiseSigma:      c.Noise.NoiseSigma,
		UpperRange:      c.Noise.UpperRange,
		UpperPercentile: c.Noise.UpperPercentile,
		SizeZIn:         c.Training.SizeZIn,
		SizeZOut:        c.Training.SizeZOut,
	}
}

// Validate checks the whole configuration. Range and size problems are caught
// here, at load time, rather than inside the augmentation loop.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Generation.Workers <= 0 {
		return errors.Errorf("generation.workers must be positive, got %d", c.Generation.Workers)
	}
	if c.Generation.Epochs <= 0 {
		return errors.Errorf("generation.epochs must be positive, got %d", c.Generation.Epochs)
	}
	if _, err := dataset.ParseDType(c.Output.DType); err != nil {
		return errors.Wrap(err, "output.dtype")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// OutputDType returns the element type batches are written with
func (c *Config) OutputDType() (dataset.DType, error) {
	return dataset.ParseDType(c.Output.DType)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", configPath)
	}
	return cfg, nil
}

// YAML encodes the configuration as a YAML document
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling config")
	}
	return data, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := cfg.YAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
