package bindgen

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAmbiguous           = errors.New("ambiguous name")
	ErrUnsupportedType     = errors.New("unsupported type")
	ErrVoidValue           = errors.New("void where a value is expected")
	ErrSelfContainment     = errors.New("self-containing value type")
	ErrDuplicateExport     = errors.New("duplicate export")
	ErrMultipleInheritance = errors.New("multiple inheritance")
	ErrCyclicDependency    = errors.New("cyclic dependency")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// ChainError records the symbol path that was being resolved when Err occurred.
type ChainError struct {
	Frames []string
	Err    error
}

func (e *ChainError) Error() string {
	if len(e.Frames) == 0 {
		return e.Err.Error()
	}
	return strings.Join(e.Frames, " -> ") + ": " + e.Err.Error()
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// Wrap prepends frame to err's chain. Wrapping nil returns nil.
func Wrap(err error, frame string) error {
	if err == nil {
		return nil
	}
	var ce *ChainError
	if errors.As(err, &ce) {
		frames := make([]string, 0, len(ce.Frames)+1)
		frames = append(frames, frame)
		frames = append(frames, ce.Frames...)
		return &ChainError{Frames: frames, Err: ce.Err}
	}
	return &ChainError{Frames: []string{frame}, Err: err}
}
