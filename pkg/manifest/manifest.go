package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Run represents one recorded generation run in the manifest.
type Run struct {
	Version string   `yaml:"version" json:"version"`
	Package string   `yaml:"package" json:"package"`
	Output  string   `yaml:"output" json:"output"`
	Units   []string `yaml:"units" json:"units"`
	Exports []string `yaml:"exports" json:"exports"`
}

// Manifest tracks the generation runs of one binding package.
type Manifest struct {
	CurrentVersion  string `yaml:"current_version" json:"current_version"`
	PreviousVersion string `yaml:"previous_version" json:"previous_version"`
	Runs            []Run  `yaml:"runs" json:"runs"`
}

// Load reads a manifest from the provided path. If the file does not exist,
// an empty manifest is returned.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &m, nil
}

// Save writes the manifest to the provided path, creating parent directories as needed.
func (m *Manifest) Save(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// AddRun records a run and moves the version pointers. Recording a version
// again replaces the earlier entry.
func (m *Manifest) AddRun(r Run) {
	r.Units = slices.Clone(r.Units)
	r.Exports = slices.Clone(r.Exports)
	slices.Sort(r.Units)
	slices.Sort(r.Exports)

	if m.CurrentVersion != "" && m.CurrentVersion != r.Version {
		m.PreviousVersion = m.CurrentVersion
	}
	m.CurrentVersion = r.Version

	for i := range m.Runs {
		if m.Runs[i].Version == r.Version {
			m.Runs[i] = r
			return
		}
	}

	m.Runs = append(m.Runs, r)
}

// Run returns the run recorded for version, if present.
func (m *Manifest) Run(version string) (Run, bool) {
	for _, r := range m.Runs {
		if r.Version == version {
			return r, true
		}
	}
	return Run{}, false
}
