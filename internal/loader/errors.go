package loader

import (
	"errors"
	"fmt"

	"github.com/kamusis/valcache/internal/catalog"
)

// ErrLoadFailure indicates an I/O or deserialization error on a resolved path.
var ErrLoadFailure = errors.New("load failure")

// LoadError wraps the underlying error of a failed deserialization. It matches
// both ErrLoadFailure and the wrapped error under errors.Is.
type LoadError struct {
	Revision string
	LSD      int
	Kind     catalog.Kind
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Revision == "" {
		return fmt.Sprintf("%v: %s: %v", ErrLoadFailure, e.Path, e.Err)
	}
	return fmt.Sprintf("%s/%d %s: %v: %s: %v", e.Revision, e.LSD, e.Kind, ErrLoadFailure, e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailure, e.Err} }
