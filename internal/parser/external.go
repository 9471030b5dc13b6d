package parser

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath = errors.New("empty header path")
	ErrSystem    = errors.New("system header")
)

// HeaderPath returns the header path relative to the base path. Headers
// outside the base path are system headers and report ErrSystem along with
// their cleaned path.
func (p *Parser) HeaderPath(file string) (string, error) {
	if file == "" {
		return "", ErrEmptyPath
	}
	base := p.Opts.BasePath
	if base == "" {
		return filepath.ToSlash(filepath.Clean(file)), nil
	}
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(base, abs)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(file)), ErrSystem
	}
	return filepath.ToSlash(rel), nil
}

// IsSystem reports whether file lies outside the project.
func (p *Parser) IsSystem(file string) bool {
	_, err := p.HeaderPath(file)
	return errors.Is(err, ErrSystem) || errors.Is(err, ErrEmptyPath)
}
