package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind identifies a family of data products.
type Kind string

const (
	KindDelaySpectrum   Kind = "delayspectrum"
	KindRingMap         Kind = "ringmap"
	KindRingMapIntercyl Kind = "ringmap_intercyl"
	KindSensitivity     Kind = "sensitivity"
	KindRFI             Kind = "rfi"
)

// RevisionGlob matches revision directory names below a root.
const RevisionGlob = "rev_*"

// minSuffixDigits is the minimum width of the LSD suffix in a product filename.
const minSuffixDigits = 4

var kinds = []Kind{
	KindDelaySpectrum,
	KindRingMap,
	KindRingMapIntercyl,
	KindSensitivity,
	KindRFI,
}

var kindGlobs = map[Kind]string{
	KindDelaySpectrum:   "delayspectrum_lsd_*.h5",
	KindRingMap:         "ringmap_lsd_*.h5",
	KindRingMapIntercyl: "ringmap_intercyl_lsd_*.h5",
	KindSensitivity:     "sensitivity_lsd_*.h5",
	KindRFI:             "rfi_mask_lsd_*.h5",
}

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind validates s as a known kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if _, ok := kindGlobs[k]; !ok {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// Glob returns the filename glob of k.
func (k Kind) Glob() string {
	return kindGlobs[k]
}

func (k Kind) String() string { return string(k) }

// parseLSDDir parses a day directory name. Only ASCII digits are accepted.
func parseLSDDir(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return n, true
}

// lsdFromFilename extracts the trailing LSD suffix from the stem of a product
// filename, e.g. 10 from "delayspectrum_lsd_0010.h5".
func lsdFromFilename(path string) (int, error) {
	stem, _, _ := strings.Cut(filepath.Base(path), ".")
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	digits := stem[i:]
	if len(digits) < minSuffixDigits {
		return 0, fmt.Errorf("%w: no %d-digit LSD suffix in %q", ErrMismatchedIdentifier, minSuffixDigits, filepath.Base(path))
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMismatchedIdentifier, err)
	}
	return n, nil
}
