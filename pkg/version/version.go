// Package version models package versions and version constraints for the
// recipe resolver.
//
// Two kinds of versions exist, mirroring what build recipes declare:
//
//   - Release versions ("1.9.1", "0.2.1"), ordered by semantic-version
//     precedence. Missing segments are zero-filled, so "1.9" == "1.9.0".
//   - Named versions ("master", "develop"), which identify a moving branch.
//     Named versions compare newer than any release version, since recipe
//     repositories treat development branches as the tip of history.
//
// Constraints use the recipe range grammar: "1.9.1:" (at least), ":1.9"
// (at most), "1.2:1.9" (inclusive range), "1.9.1" (exactly), "master"
// (exactly that named version). Bounds are inclusive and compare by
// semantic-version precedence.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/constracktor/concretor/pkg/errors"
)

// Version is a single package version, either a release or a named branch.
// The zero value is not usable; construct with Parse or MustParse.
type Version struct {
	raw string
	sv  *semver.Version // nil for named versions
}

// Parse parses a version string. Release versions must parse as (possibly
// partial) semantic versions; anything starting with a letter is a named
// version.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, errors.New(errors.ErrCodeInvalidVersionConstraint, "version cannot be empty")
	}
	if isNamed(s) {
		return Version{raw: s}, nil
	}
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeInvalidVersionConstraint, err, "invalid version %q", s)
	}
	return Version{raw: s, sv: sv}, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures and
// package-level declarations.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// isNamed reports whether s denotes a branch-like named version.
func isNamed(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsNamed reports whether v is a named (branch) version.
func (v Version) IsNamed() bool { return v.sv == nil }

// String returns the version as written.
func (v Version) String() string { return v.raw }

// Equal reports whether two versions are the same. Release versions compare
// by precedence ("1.9" equals "1.9.0"), named versions by name.
func (v Version) Equal(o Version) bool {
	if v.IsNamed() != o.IsNamed() {
		return false
	}
	if v.IsNamed() {
		return v.raw == o.raw
	}
	return v.sv.Equal(o.sv)
}

// Compare orders versions: -1 if v is older than o, 0 if equal, +1 if newer.
// Named versions are newer than every release version; two named versions
// order lexically for determinism.
func (v Version) Compare(o Version) int {
	switch {
	case v.IsNamed() && o.IsNamed():
		return strings.Compare(v.raw, o.raw)
	case v.IsNamed():
		return 1
	case o.IsNamed():
		return -1
	default:
		return v.sv.Compare(o.sv)
	}
}
