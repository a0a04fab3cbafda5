package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctaugment/internal/models"
	"ctaugment/pkg/config"
	"ctaugment/pkg/dataset"
)

// run executes the root command with args and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// writeConfig stores a small configuration suited to the phantom dataset below
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Training.BatchSize = 4
	cfg.Generation.Workers = 2
	cfg.Generation.Epochs = 2
	cfg.Generation.Seed = 42
	cfg.Output.Dir = filepath.Join(dir, "augmented")
	cfg.Logging.Level = "warn"

	path := filepath.Join(dir, "ctaugment.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func phantomArgs(cfgPath, out string) []string {
	return []string{
		"phantom", "--config", cfgPath, "--out", out,
		"--size", "32", "--depth", "8", "--patch", "16",
		"--stride", "8", "--stride-z", "3", "--min-peak", "0",
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")

	_, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = run(t, "config", "init", "--config", path)
	assert.Error(t, err, "init must not overwrite without --force")

	_, err = run(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)

	out, err := run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "batchSize: 128")
	assert.Contains(t, out, "upperPercentile: 99.9")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training:\n  batchSize: 0\n"), 0644))

	_, err := run(t, "config", "show", "--config", path)
	assert.Error(t, err)
}

func TestPhantomGenerateStats(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	phantomDir := filepath.Join(dir, "phantom")

	_, err := run(t, phantomArgs(cfgPath, phantomDir)...)
	require.NoError(t, err)

	cleanPath, noisyPath := dataset.PairPaths(phantomDir, "phantom")
	paired, err := dataset.LoadPaired(cleanPath, noisyPath)
	require.NoError(t, err)
	// 3x3 in-plane positions times 2 positions along z
	require.Equal(t, 18, paired.Len())
	assert.Equal(t, models.Shape{16, 16, 5}, paired.Shape())

	_, err = run(t, "generate", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath, "--no-progress")
	require.NoError(t, err)

	for epoch := 0; epoch < 2; epoch++ {
		for b := 0; b < 4; b++ {
			c, n := dataset.PairPaths(
				filepath.Join(dir, "augmented", fmt.Sprintf("epoch_%03d", epoch)),
				fmt.Sprintf("batch_%05d", b))
			clean, err := dataset.LoadNPY(c)
			require.NoError(t, err)
			noisy, err := dataset.LoadNPY(n)
			require.NoError(t, err)

			require.Len(t, clean, 4)
			require.Len(t, noisy, 4)
			assert.Equal(t, models.Shape{16, 16, 1}, clean.Shape())
			assert.Equal(t, models.Shape{16, 16, 5}, noisy.Shape())
		}
	}

	out, err := run(t, "stats", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath)
	require.NoError(t, err)
	assert.Contains(t, out, "patches")
	assert.Contains(t, out, "18")
	assert.Contains(t, out, "psnr")

	out, err = run(t, "stats", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath, "--augmented", "--batch", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "batch 1")
	assert.Contains(t, out, "(16,16,1)")

	report := filepath.Join(dir, "report.csv")
	hist := filepath.Join(dir, "hist.png")
	out, err = run(t, "stats", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath,
		"--report", report, "--histogram", hist)
	require.NoError(t, err)
	assert.Contains(t, out, "mean over batches")
	csv, err := os.ReadFile(report)
	require.NoError(t, err)
	// header plus one line per batch
	assert.Equal(t, 5, bytes.Count(csv, []byte("\n")))
	_, err = os.Stat(hist)
	assert.NoError(t, err)

	manifest, err := dataset.ReadManifest(filepath.Join(dir, "augmented"))
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.Epochs)
	assert.Equal(t, 4, manifest.NumBatches)
	assert.Equal(t, dataset.Float32, manifest.DType)

	png := filepath.Join(dir, "preview.png")
	slices := filepath.Join(dir, "slices")
	_, err = run(t, "preview", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath,
		"--out", png, "--rows", "2", "--slices", slices, "--axis", "x")
	require.NoError(t, err)
	_, err = os.Stat(png)
	assert.NoError(t, err)

	// 16 columns for each branch
	cleanSlices, err := filepath.Glob(filepath.Join(slices, "clean_x_*.png"))
	require.NoError(t, err)
	assert.Len(t, cleanSlices, 16)
	noisySlices, err := filepath.Glob(filepath.Join(slices, "noisy_x_*.png"))
	require.NoError(t, err)
	assert.Len(t, noisySlices, 16)

	_, err = run(t, "preview", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath,
		"--out", png, "--slices", slices, "--axis", "w")
	assert.Error(t, err)
}

func TestGenerateRejectsTooFewPatches(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Training.BatchSize = 64
	cfgPath := filepath.Join(dir, "ctaugment.yaml")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	phantomDir := filepath.Join(dir, "phantom")
	_, err := run(t, phantomArgs(cfgPath, phantomDir)...)
	require.NoError(t, err)

	cleanPath, noisyPath := dataset.PairPaths(phantomDir, "phantom")
	_, err = run(t, "generate", "--config", cfgPath, "--clean", cleanPath, "--noisy", noisyPath,
		"--out", filepath.Join(dir, "out"), "--no-progress")
	assert.Error(t, err)
}
