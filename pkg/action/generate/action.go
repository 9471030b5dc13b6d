package generate

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/clang/astfile"
	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/parser"
	"github.com/cmmoran/cxxffigen/internal/render"
	"github.com/cmmoran/cxxffigen/internal/writer"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

// Result describes the package one run produced.
type Result struct {
	Output  string
	Package string
	PkgPath string
	// Files are the written paths; Units their base names.
	Files    []string
	Units    []string
	Exports  []string
	Warnings []string
}

// Generate loads the AST snapshot, expands every import and writes the
// binding package to opts.OutputPath. A failed run writes nothing.
func Generate(ctx context.Context, fs afero.Fs, opts *bindgen.Options) (*Result, error) {
	log := logging.Named("generate")
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, opts.AST)
	if err != nil {
		return nil, bindgen.Wrap(err, "ast "+opts.AST)
	}
	tu, err := astfile.Parse(data)
	if err != nil {
		return nil, bindgen.Wrap(err, "ast "+opts.AST)
	}

	p := parser.NewWithOpts(tu.Cursor(), opts)
	if err = p.Parse(); err != nil {
		return nil, err
	}
	units := p.Units()
	log.Debug("parsed", zap.Int("units", len(units)), zap.Int64("pointer_size", p.PointerSize))

	r := render.New(render.Config{PointerSize: p.PointerSize})
	files, err := r.Render(units)
	if err != nil {
		return nil, err
	}

	pkgPath, err := writer.PackagePath(fs, opts.OutputPath)
	if errors.Is(err, writer.ErrNoModule) {
		log.Debug("output is outside a module", zap.String("output", opts.OutputPath))
		pkgPath, err = opts.PackageName, nil
	}
	if err != nil {
		return nil, err
	}
	w := writer.New(fs, opts.PackageName, pkgPath, render.DefaultFFIPath)
	written, err := w.Write(ctx, opts.OutputPath, files)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:   opts.OutputPath,
		Package:  opts.PackageName,
		PkgPath:  pkgPath,
		Files:    written,
		Warnings: append(append([]string(nil), p.Warnings...), r.Warnings...),
	}
	for _, f := range files {
		res.Units = append(res.Units, f.Name)
		res.Exports = append(res.Exports, f.Exports...)
	}
	sort.Strings(res.Exports)
	log.Info("generated",
		zap.String("package", pkgPath),
		zap.Int("files", len(written)),
		zap.Int("exports", len(res.Exports)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Rel reports path relative to the output directory when it lies inside it.
func (r *Result) Rel(path string) string {
	rel, err := filepath.Rel(r.Output, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
