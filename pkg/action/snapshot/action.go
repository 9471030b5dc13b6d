package snapshot

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/cmmoran/cxxffigen/pkg/action/generate"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
	"github.com/cmmoran/cxxffigen/pkg/manifest"
)

// Record generates the binding package and records the run in the manifest.
func Record(ctx context.Context, fs afero.Fs, opts *bindgen.Options, manifestPath, version string) (*generate.Result, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: snapshot version is required", bindgen.ErrInvalidConfig)
	}
	m, err := manifest.Load(fs, manifestPath)
	if err != nil {
		return nil, err
	}

	res, err := generate.Generate(ctx, fs, opts)
	if err != nil {
		return nil, err
	}

	m.AddRun(manifest.Run{
		Version: version,
		Package: res.PkgPath,
		Output:  res.Output,
		Units:   res.Units,
		Exports: res.Exports,
	})
	if err := m.Save(fs, manifestPath); err != nil {
		return nil, err
	}

	return res, nil
}

// List returns all runs recorded in the manifest.
func List(fs afero.Fs, manifestPath string) (*manifest.Manifest, error) {
	return manifest.Load(fs, manifestPath)
}

// diffable is the part of a run that matters to callers of the bindings.
type diffable struct {
	Package string
	Units   []string
	Exports []string
}

// DiffCurrentWithPrevious reports how the exports and units of the current
// run differ from the previous one. An empty result means no change.
func DiffCurrentWithPrevious(fs afero.Fs, manifestPath string) (string, error) {
	m, err := manifest.Load(fs, manifestPath)
	if err != nil {
		return "", err
	}

	if m.CurrentVersion == "" || m.PreviousVersion == "" {
		return "", fmt.Errorf("no current/previous runs recorded")
	}

	current, ok := m.Run(m.CurrentVersion)
	if !ok {
		return "", fmt.Errorf("run %s not found in manifest", m.CurrentVersion)
	}
	previous, ok := m.Run(m.PreviousVersion)
	if !ok {
		return "", fmt.Errorf("run %s not found in manifest", m.PreviousVersion)
	}

	return cmp.Diff(
		diffable{Package: previous.Package, Units: previous.Units, Exports: previous.Exports},
		diffable{Package: current.Package, Units: current.Units, Exports: current.Exports},
	), nil
}
