package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/constracktor/concretor/pkg/errors"
)

// Constraint is a conjunction of version ranges. The zero value admits every
// version ("any"). Constraints are immutable; And returns a new value.
type Constraint struct {
	parts []rangePart
}

// rangePart is one conjunct: either an exact named version or a semver range.
type rangePart struct {
	raw   string
	named string              // exact named version, when set
	rng   *semver.Constraints // otherwise
}

// Any returns the constraint that admits every version.
func Any() Constraint { return Constraint{} }

// ParseConstraint parses one range expression of the recipe grammar:
//
//	""        any version
//	":"       any version
//	"1.9.1:"  at least 1.9.1
//	":1.9"    at most 1.9
//	"1.2:1.9" between 1.2 and 1.9, inclusive
//	"1.9.1"   exactly 1.9.1 (by precedence, so "1.9.1" admits "1.9.1")
//	"master"  exactly the named version master
//
// Partial bounds are zero-filled before comparing: ":1.9" means "<= 1.9.0"
// and does not admit 1.9.1, and exact "1.9" admits only 1.9.0.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ":" {
		return Any(), nil
	}

	if !strings.Contains(s, ":") {
		if isNamed(s) {
			return Constraint{parts: []rangePart{{raw: s, named: s}}}, nil
		}
		rng, err := semver.NewConstraint("= " + padded(s))
		if err != nil {
			return Constraint{}, errors.Wrap(errors.ErrCodeInvalidVersionConstraint, err, "invalid version constraint %q", s)
		}
		return Constraint{parts: []rangePart{{raw: s, rng: rng}}}, nil
	}

	lo, hi, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(hi, ":") {
		return Constraint{}, errors.New(errors.ErrCodeInvalidVersionConstraint, "invalid version constraint %q", s)
	}
	if isNamed(lo) || isNamed(hi) {
		return Constraint{}, errors.New(errors.ErrCodeInvalidVersionConstraint, "named versions cannot appear in ranges: %q", s)
	}

	var exprs []string
	if lo != "" {
		exprs = append(exprs, ">= "+padded(lo))
	}
	if hi != "" {
		exprs = append(exprs, "<= "+padded(hi))
	}
	rng, err := semver.NewConstraint(strings.Join(exprs, ", "))
	if err != nil {
		return Constraint{}, errors.Wrap(errors.ErrCodeInvalidVersionConstraint, err, "invalid version constraint %q", s)
	}
	return Constraint{parts: []rangePart{{raw: s, rng: rng}}}, nil
}

// padded zero-fills missing segments of a release version literal, so the
// bound "1.9" compares as "1.9.0". Without this, semver reads a partial
// version inside a comparator as a wildcard and "<= 1.9" would admit 1.9.1.
func padded(s string) string {
	base, suffix := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		base, suffix = s[:i], s[i:]
	}
	for strings.Count(base, ".") < 2 {
		base += ".0"
	}
	return base + suffix
}

// MustParseConstraint is like ParseConstraint but panics on error.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsAny reports whether c admits every version.
func (c Constraint) IsAny() bool { return len(c.parts) == 0 }

// Admits reports whether v satisfies every conjunct of c.
//
// A range conjunct never admits a named version: a branch has no defined
// position inside a numeric range, so "hpx@1.9.1:" does not admit
// "hpx@master". Pin branches with an exact named constraint instead.
func (c Constraint) Admits(v Version) bool {
	for _, p := range c.parts {
		if p.named != "" {
			if !v.IsNamed() || v.raw != p.named {
				return false
			}
			continue
		}
		if v.IsNamed() {
			return false
		}
		if !p.rng.Check(v.sv) {
			return false
		}
	}
	return true
}

// And returns the conjunction of c and o.
func (c Constraint) And(o Constraint) Constraint {
	if c.IsAny() {
		return o
	}
	if o.IsAny() {
		return c
	}
	parts := make([]rangePart, 0, len(c.parts)+len(o.parts))
	parts = append(parts, c.parts...)
	parts = append(parts, o.parts...)
	return Constraint{parts: parts}
}

// Filter returns the versions of vs admitted by c, preserving order.
func (c Constraint) Filter(vs []Version) []Version {
	if c.IsAny() {
		return vs
	}
	var out []Version
	for _, v := range vs {
		if c.Admits(v) {
			out = append(out, v)
		}
	}
	return out
}

// String renders the constraint in the recipe range grammar. Conjuncts are
// joined with commas; the any-constraint renders as ":".
func (c Constraint) String() string {
	if c.IsAny() {
		return ":"
	}
	raws := make([]string, len(c.parts))
	for i, p := range c.parts {
		raws[i] = p.raw
	}
	return strings.Join(raws, ",")
}

// GoString aids test failure output.
func (c Constraint) GoString() string { return fmt.Sprintf("version.Constraint(%s)", c.String()) }
