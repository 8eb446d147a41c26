package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates an unknown revision or day.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates a kind recorded absent for a known day.
	ErrUnavailable = errors.New("unavailable")
	// ErrAmbiguousSource indicates more than one file matched a kind's glob.
	ErrAmbiguousSource = errors.New("ambiguous source")
	// ErrMismatchedIdentifier indicates a filename whose LSD disagrees with its directory.
	ErrMismatchedIdentifier = errors.New("mismatched identifier")
	// ErrEmptyCatalog indicates that no revision is known.
	ErrEmptyCatalog = errors.New("catalog is empty")
)

// LookupError describes a failed catalog query.
type LookupError struct {
	Revision string
	LSD      int
	Kind     Kind
	Err      error
}

func (e *LookupError) Error() string {
	var b strings.Builder
	b.WriteString(e.Revision)
	if e.LSD >= 0 {
		fmt.Fprintf(&b, "/%d", e.LSD)
	}
	if e.Kind != "" {
		fmt.Fprintf(&b, " %s", e.Kind)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *LookupError) Unwrap() error { return e.Err }

// Diagnostic is an anomaly observed during a Scan. Diagnostics never abort a Scan.
type Diagnostic struct {
	Root     string
	Revision string
	LSD      int
	Kind     Kind
	Paths    []string
	Err      error
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Revision != "" {
		b.WriteString(d.Revision)
		if d.LSD >= 0 {
			fmt.Fprintf(&b, "/%d", d.LSD)
		}
	} else {
		b.WriteString(d.Root)
	}
	if d.Kind != "" {
		fmt.Fprintf(&b, " %s", d.Kind)
	}
	fmt.Fprintf(&b, ": %v", d.Err)
	if len(d.Paths) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(d.Paths, ", "))
	}
	return b.String()
}

func (d Diagnostic) Unwrap() error { return d.Err }
