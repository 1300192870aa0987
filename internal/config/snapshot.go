package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk shape of a recorded analysis configuration.
type snapshotFile struct {
	Analysis AnalysisConfig `yaml:"analysis"`
}

// MarshalSnapshot renders a as YAML under a top-level "analysis" key.
func MarshalSnapshot(a AnalysisConfig) ([]byte, error) {
	data, err := yaml.Marshal(snapshotFile{Analysis: a})
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal snapshot")
	}
	return data, nil
}

// ParseSnapshot reads an AnalysisConfig back from MarshalSnapshot output
// and validates it.
func ParseSnapshot(data []byte) (AnalysisConfig, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return AnalysisConfig{}, eris.Wrap(err, "config: parse snapshot")
	}
	if err := f.Analysis.Validate(); err != nil {
		return AnalysisConfig{}, err
	}
	return f.Analysis, nil
}

// LoadSnapshot reads a snapshot file written by a previous run.
func LoadSnapshot(path string) (AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AnalysisConfig{}, eris.Wrapf(err, "config: read snapshot %s", path)
	}
	return ParseSnapshot(data)
}
