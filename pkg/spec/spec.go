// Package spec models package requests and guard predicates.
//
// A Spec is a partially specified package: a name, a version constraint,
// variant assignments, and an optional compiler constraint. Specs are
// written in the conventional recipe syntax:
//
//	hpxsc@0.1.0: +cuda ~rocm simd_extension=AVX %gcc@:10
//
// where "+v" enables a boolean variant, "~v" (or "-v") disables it,
// "name=value" assigns an enumerated variant, "@range" constrains the
// version, and "%compiler[@range]" constrains the compiler.
//
// A Spec with an empty name is an anonymous spec; recipes use anonymous
// specs as guard predicates ("when" clauses) and conflict matchers, which
// are evaluated against a concrete package via Matches.
//
// A Concrete is a fully resolved package instance produced by the solver:
// exact version, a total variant assignment, and an exact compiler.
package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/version"
)

// Value is a variant value. Boolean variants use ValueTrue and ValueFalse;
// enumerated variants use their token verbatim.
type Value string

// Boolean variant values.
const (
	ValueTrue  Value = "true"
	ValueFalse Value = "false"
)

// BoolValue converts a bool to its variant value.
func BoolValue(b bool) Value {
	if b {
		return ValueTrue
	}
	return ValueFalse
}

// IsBool reports whether v is one of the boolean values.
func (v Value) IsBool() bool { return v == ValueTrue || v == ValueFalse }

// Spec is a partially specified package request or guard predicate.
type Spec struct {
	// Name of the requested package. Empty for anonymous (guard) specs.
	Name string
	// Version constrains the package version. The zero value admits any.
	Version version.Constraint
	// Variants maps variant names to required values. Absent variants are
	// unconstrained.
	Variants map[string]Value
	// Compiler constrains the compiler, if non-nil.
	Compiler *CompilerSpec
}

// CompilerSpec constrains the compiler of a package ("%gcc@:10").
type CompilerSpec struct {
	Name    string
	Version version.Constraint
}

// New returns an empty spec for the named package.
func New(name string) *Spec {
	return &Spec{Name: name, Variants: make(map[string]Value)}
}

// IsAnonymous reports whether s is a guard predicate rather than a request
// for a particular package.
func (s *Spec) IsAnonymous() bool { return s.Name == "" }

// Clone returns a deep copy of s.
func (s *Spec) Clone() *Spec {
	c := &Spec{
		Name:     s.Name,
		Version:  s.Version,
		Variants: make(map[string]Value, len(s.Variants)),
	}
	for k, v := range s.Variants {
		c.Variants[k] = v
	}
	if s.Compiler != nil {
		cc := *s.Compiler
		c.Compiler = &cc
	}
	return c
}

// Merge combines two specs for the same package into one. Version and
// compiler constraints are conjoined; variant assignments are unioned.
// Merge fails with CONFLICTING_CONSTRAINT when the two specs assign
// different values to the same variant or name different compilers, and
// with INVALID_SPEC when the names disagree.
func (s *Spec) Merge(o *Spec) (*Spec, error) {
	if !s.IsAnonymous() && !o.IsAnonymous() && s.Name != o.Name {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "cannot merge specs for %s and %s", s.Name, o.Name)
	}

	m := s.Clone()
	if m.Name == "" {
		m.Name = o.Name
	}
	m.Version = m.Version.And(o.Version)

	for name, val := range o.Variants {
		if prev, ok := m.Variants[name]; ok && prev != val {
			return nil, errors.New(errors.ErrCodeConflictingConstraint,
				"%s: variant %s assigned both %s and %s", m.Name, name, prev, val)
		}
		m.Variants[name] = val
	}

	if o.Compiler != nil {
		if m.Compiler == nil {
			cc := *o.Compiler
			m.Compiler = &cc
		} else {
			if m.Compiler.Name != o.Compiler.Name {
				return nil, errors.New(errors.ErrCodeConflictingConstraint,
					"%s: compiler constrained to both %%%s and %%%s", m.Name, m.Compiler.Name, o.Compiler.Name)
			}
			m.Compiler.Version = m.Compiler.Version.And(o.Compiler.Version)
		}
	}

	return m, nil
}

// String renders the spec in canonical form: name, version constraint,
// variants sorted by name (booleans as +v/~v, enums as name=value), then
// the compiler constraint. Canonical form is stable and parseable.
func (s *Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)

	if !s.Version.IsAny() {
		b.WriteByte('@')
		b.WriteString(s.Version.String())
	}

	names := make([]string, 0, len(s.Variants))
	for name := range s.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		switch s.Variants[name] {
		case ValueTrue:
			b.WriteByte('+')
			b.WriteString(name)
		case ValueFalse:
			b.WriteByte('~')
			b.WriteString(name)
		default:
			fmt.Fprintf(&b, "%s=%s", name, s.Variants[name])
		}
	}

	if s.Compiler != nil {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('%')
		b.WriteString(s.Compiler.Name)
		if !s.Compiler.Version.IsAny() {
			b.WriteByte('@')
			b.WriteString(s.Compiler.Version.String())
		}
	}

	return b.String()
}
