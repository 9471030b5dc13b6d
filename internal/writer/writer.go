// Package writer formats rendered files and moves them into the output
// directory in one step. Nothing in the output directory changes unless
// every file formatted and staged cleanly.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/cmmoran/cxxffigen/internal/logging"
	"github.com/cmmoran/cxxffigen/internal/render"
)

var ErrNoModule = errors.New("no go.mod above output path")

// Writer writes the files of one generated package.
type Writer struct {
	Fs      afero.Fs
	PkgName string
	// PkgPath is the import path of the generated package.
	PkgPath string
	FFIPath string
	// Workers bounds parallel formatting; zero means one per file.
	Workers int

	log *zap.Logger
}

func New(fs afero.Fs, pkgName, pkgPath, ffiPath string) *Writer {
	if ffiPath == "" {
		ffiPath = render.DefaultFFIPath
	}
	if pkgPath == "" {
		pkgPath = pkgName
	}
	return &Writer{Fs: fs, PkgName: pkgName, PkgPath: pkgPath, FFIPath: ffiPath, log: logging.Named("writer")}
}

// PackagePath derives the import path of dir from the nearest go.mod in dir
// or above it.
func PackagePath(fs afero.Fs, dir string) (string, error) {
	dir = filepath.Clean(dir)
	for cur := dir; ; {
		gomod := filepath.Join(cur, "go.mod")
		if ok, _ := afero.Exists(fs, gomod); ok {
			data, err := afero.ReadFile(fs, gomod)
			if err != nil {
				return "", fmt.Errorf("read go.mod: %w", err)
			}
			mod := modfile.ModulePath(data)
			if mod == "" {
				return "", fmt.Errorf("%w: %s declares no module", ErrNoModule, gomod)
			}
			rel, err := filepath.Rel(cur, dir)
			if err != nil {
				return "", err
			}
			if rel == "." {
				return mod, nil
			}
			return mod + "/" + filepath.ToSlash(rel), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w: %s", ErrNoModule, dir)
		}
		cur = parent
	}
}

// Output is one formatted file.
type Output struct {
	Name string
	Data []byte
}

var formatOptions = &imports.Options{
	Comments:   true,
	TabIndent:  true,
	TabWidth:   8,
	FormatOnly: true,
}

// Format renders every file and runs it through goimports.
func (w *Writer) Format(ctx context.Context, files []*render.File) ([]Output, error) {
	out := make([]Output, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if w.Workers > 0 {
		g.SetLimit(w.Workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := f.Jen(w.PkgPath, w.PkgName, w.FFIPath).Render(&buf); err != nil {
				return fmt.Errorf("render %s: %w", f.Name, err)
			}
			data, err := imports.Process(f.Name, buf.Bytes(), formatOptions)
			if err != nil {
				return fmt.Errorf("format %s: %w", f.Name, err)
			}
			out[i] = Output{Name: f.Name, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Write formats files, stages them next to dir and then moves them in.
// Generated files in dir that the run no longer produces are removed.
// It returns the written paths.
func (w *Writer) Write(ctx context.Context, dir string, files []*render.File) ([]string, error) {
	outputs, err := w.Format(ctx, files)
	if err != nil {
		return nil, err
	}
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err = w.Fs.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create output parent: %w", err)
	}
	staging, err := afero.TempDir(w.Fs, parent, "."+filepath.Base(dir)+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if rmErr := w.Fs.RemoveAll(staging); rmErr != nil {
			w.log.Warn("staging directory left behind", zap.String("dir", staging), zap.Error(rmErr))
		}
	}()
	for _, o := range outputs {
		if err = afero.WriteFile(w.Fs, filepath.Join(staging, o.Name), o.Data, 0o644); err != nil {
			return nil, fmt.Errorf("stage %s: %w", o.Name, err)
		}
	}
	w.log.Debug("staged", zap.String("dir", staging), zap.Int("files", len(outputs)))
	return w.commit(staging, dir, outputs)
}

func (w *Writer) commit(staging, dir string, outputs []Output) ([]string, error) {
	if err := w.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	keep := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		keep[o.Name] = true
	}
	stale, err := w.stale(dir, keep)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, o := range outputs {
		dst := filepath.Join(dir, o.Name)
		if err := w.Fs.Rename(filepath.Join(staging, o.Name), dst); err != nil {
			return written, fmt.Errorf("move %s: %w", o.Name, err)
		}
		written = append(written, dst)
	}
	for _, name := range stale {
		if err := w.Fs.Remove(name); err != nil {
			return written, fmt.Errorf("remove stale %s: %w", filepath.Base(name), err)
		}
		w.log.Debug("removed stale file", zap.String("file", name))
	}
	sort.Strings(written)
	return written, nil
}

// stale lists the generated files in dir that are not in keep.
func (w *Writer) stale(dir string, keep map[string]bool) ([]string, error) {
	infos, err := afero.ReadDir(w.Fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}
	marker := []byte("// " + render.Header)
	var out []string
	for _, fi := range infos {
		if fi.IsDir() || keep[fi.Name()] || !strings.HasSuffix(fi.Name(), ".go") {
			continue
		}
		path := filepath.Join(dir, fi.Name())
		data, err := afero.ReadFile(w.Fs, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fi.Name(), err)
		}
		if bytes.HasPrefix(data, marker) {
			out = append(out, path)
		}
	}
	return out, nil
}
