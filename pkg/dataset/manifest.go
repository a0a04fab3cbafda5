package dataset

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"ctaugment/pkg/augment"
)

// ManifestFile is the name of the manifest written next to generated epochs
const ManifestFile = "manifest.yaml"

// Manifest records how a directory of augmented batches was produced, so a
// training run can be traced back to its seed and parameters.
type Manifest struct {
	RunID      string         `yaml:"runID"`
	Created    time.Time      `yaml:"created"`
	Seed       uint64         `yaml:"seed"`
	Epochs     int            `yaml:"epochs"`
	NumBatches int            `yaml:"numBatches"`
	Patches    int            `yaml:"patches"`
	Shape      [3]int         `yaml:"shape,flow"`
	DType      DType          `yaml:"dtype"`
	Params     augment.Params `yaml:"params"`
}

// NewManifest describes a generation run of the given number of epochs
func (g *Generator) NewManifest(epochs int, dtype DType) Manifest {
	return Manifest{
		RunID:      uuid.NewString(),
		Created:    time.Now().UTC(),
		Seed:       g.seed,
		Epochs:     epochs,
		NumBatches: g.NumBatches(),
		Patches:    g.data.Len(),
		Shape:      g.data.Shape(),
		DType:      dtype,
		Params:     g.params,
	}
}

// WriteManifest stores m as dir/manifest.yaml
func WriteManifest(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshaling manifest")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644), "writing manifest")
}

// ReadManifest loads dir/manifest.yaml
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, errors.Wrap(err, "reading manifest")
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "parsing manifest")
	}
	return m, nil
}
