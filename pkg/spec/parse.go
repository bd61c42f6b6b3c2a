package spec

import (
	"strings"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/version"
)

// Parse parses a spec string. The first token may be a package name with an
// optional attached version constraint ("hpx@1.9.1:"); every token may be a
// variant sigil ("+cuda", "~rocm", "-rocm", "simd_extension=AVX"), a bare
// version constraint ("@0.1.0:"), or a compiler constraint ("%gcc@:10").
// Tokens are whitespace-separated. An empty string parses to the empty
// anonymous spec, which matches everything.
func Parse(input string) (*Spec, error) {
	s := &Spec{Variants: make(map[string]Value)}

	for i, tok := range strings.Fields(input) {
		var err error
		switch {
		case strings.HasPrefix(tok, "@"):
			err = s.parseVersion(tok[1:])
		case strings.HasPrefix(tok, "+"):
			err = s.parseVariant(tok[1:], ValueTrue)
		case strings.HasPrefix(tok, "~"), strings.HasPrefix(tok, "-"):
			err = s.parseVariant(tok[1:], ValueFalse)
		case strings.HasPrefix(tok, "%"):
			err = s.parseCompiler(tok[1:])
		case strings.Contains(tok, "="):
			name, val, _ := strings.Cut(tok, "=")
			err = s.parseVariant(name, Value(val))
		case i == 0:
			err = s.parseName(tok)
		default:
			err = errors.New(errors.ErrCodeInvalidSpec, "unexpected token %q in spec %q", tok, input)
		}
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures and
// package-level declarations.
func MustParse(input string) *Spec {
	s, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Spec) parseName(tok string) error {
	name, ver, hasVer := strings.Cut(tok, "@")
	if err := errors.ValidateRecipeName(name); err != nil {
		return err
	}
	s.Name = name
	if hasVer {
		return s.parseVersion(ver)
	}
	return nil
}

func (s *Spec) parseVersion(tok string) error {
	c, err := version.ParseConstraint(tok)
	if err != nil {
		return err
	}
	if !s.Version.IsAny() {
		return errors.New(errors.ErrCodeInvalidSpec, "duplicate version constraint %q", tok)
	}
	s.Version = c
	return nil
}

func (s *Spec) parseVariant(name string, val Value) error {
	if err := errors.ValidateVariantName(name); err != nil {
		return err
	}
	if val == "" {
		return errors.New(errors.ErrCodeInvalidSpec, "variant %s requires a value", name)
	}
	if prev, ok := s.Variants[name]; ok {
		if prev != val {
			return errors.New(errors.ErrCodeConflictingConstraint,
				"variant %s assigned both %s and %s", name, prev, val)
		}
		return nil
	}
	s.Variants[name] = val
	return nil
}

func (s *Spec) parseCompiler(tok string) error {
	if s.Compiler != nil {
		return errors.New(errors.ErrCodeInvalidSpec, "duplicate compiler constraint %%%s", tok)
	}
	name, ver, hasVer := strings.Cut(tok, "@")
	if name == "" {
		return errors.New(errors.ErrCodeInvalidSpec, "compiler constraint requires a name")
	}
	cs := &CompilerSpec{Name: name}
	if hasVer {
		c, err := version.ParseConstraint(ver)
		if err != nil {
			return err
		}
		cs.Version = c
	}
	s.Compiler = cs
	return nil
}
