package catalog

import (
	"errors"
	"testing"
)

func TestLSDFromFilename(t *testing.T) {
	cases := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"delayspectrum_lsd_0010.h5", 10, false},
		{"ringmap_intercyl_lsd_2151.h5", 2151, false},
		{"sensitivity_lsd_12345.h5", 12345, false},
		{"ringmap_lsd_0200.zarr.zip", 200, false},
		{"rfi_mask_lsd_99.h5", 0, true},
		{"delayspectrum_lsd_.h5", 0, true},
	}
	for _, tc := range cases {
		got, err := lsdFromFilename("/data/rev_00/10/" + tc.name)
		if tc.wantErr {
			if !errors.Is(err, ErrMismatchedIdentifier) {
				t.Errorf("%s: expected ErrMismatchedIdentifier, got %v", tc.name, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%s: got %d, %v; want %d", tc.name, got, err, tc.want)
		}
	}
}

func TestParseLSDDir(t *testing.T) {
	for name, want := range map[string]bool{"10": true, "0010": true, "": false, "-1": false, "1a": false, "１２": false} {
		if _, ok := parseLSDDir(name); ok != want {
			t.Errorf("parseLSDDir(%q) = %v, want %v", name, ok, want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
		if k.Glob() == "" {
			t.Errorf("kind %q has no glob", k)
		}
	}
	if _, err := ParseKind("spectrogram"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
