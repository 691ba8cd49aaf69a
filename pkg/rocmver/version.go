// Package rocmver resolves a requested ROCm version specifier to a concrete
// release version. Resolution is best-effort against a remote package index
// and always enforces a configured minimum floor: a result below the floor is
// replaced by the configured default, never returned.
package rocmver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed release version. Patch is zero when the input carried
// only a major.minor series.
type Version struct {
	// Major is the major version component.
	Major int `json:"major"`

	// Minor is the minor version component.
	Minor int `json:"minor"`

	// Patch is the patch version component.
	Patch int `json:"patch"`
}

// Parse parses a version string of the form "X.Y" or "X.Y.Z".
// Leading "v" or "rocm-" prefixes, as they appear in repository directory
// listings, are accepted and stripped.
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "rocm-")
	raw = strings.TrimPrefix(raw, "v")
	raw = strings.TrimSuffix(raw, "/")

	if raw == "" {
		return Version{}, fmt.Errorf("empty version string")
	}

	parts := strings.Split(raw, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected X.Y or X.Y.Z", s)
	}

	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a number", s, part)
		}
		fields[i] = n
	}

	return Version{Major: fields[0], Minor: fields[1], Patch: fields[2]}, nil
}

// MustParse parses a version string and panics on failure. It is intended for
// compile-time constants only.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater than o.
// Comparison is numeric field by field, never lexicographic.
func (v Version) Compare(o Version) int {
	pairs := [][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

// Series returns the major.minor identifier used to select a compatible
// build of the GPU platform software (e.g. "6.4" for version 6.4.3).
func (v Version) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// SeriesVersion returns v truncated to its major.minor series.
func (v Version) SeriesVersion() Version {
	return Version{Major: v.Major, Minor: v.Minor}
}

// String returns the full X.Y.Z form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
