package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/constracktor/concretor/pkg/version"
)

// Compiler is a fully specified compiler: name and exact version.
type Compiler struct {
	Name    string
	Version version.Version
}

// String renders the compiler as "name@version".
func (c Compiler) String() string {
	return fmt.Sprintf("%s@%s", c.Name, c.Version)
}

// ParseCompiler parses a "name@version" compiler declaration.
func ParseCompiler(s string) (Compiler, error) {
	name, ver, _ := strings.Cut(s, "@")
	v, err := version.Parse(ver)
	if err != nil {
		return Compiler{}, err
	}
	return Compiler{Name: name, Version: v}, nil
}

// Concrete is one fully resolved package instance: exact version, a total
// variant assignment over the package's active variants, and an exact
// compiler. Concretes are produced only by the solver and are immutable
// once emitted.
type Concrete struct {
	Name     string
	Version  version.Version
	Variants map[string]Value
	Compiler Compiler
}

// Variant returns the assigned value of the named variant. ok is false when
// the variant is not active for this instance.
func (c *Concrete) Variant(name string) (Value, bool) {
	v, ok := c.Variants[name]
	return v, ok
}

// String renders the concrete instance in canonical spec syntax, variants
// sorted by name.
func (c *Concrete) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s", c.Name, c.Version)

	names := make([]string, 0, len(c.Variants))
	for name := range c.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch c.Variants[name] {
		case ValueTrue:
			b.WriteString(" +" + name)
		case ValueFalse:
			b.WriteString(" ~" + name)
		default:
			fmt.Fprintf(&b, " %s=%s", name, c.Variants[name])
		}
	}

	fmt.Fprintf(&b, " %%%s", c.Compiler)
	return b.String()
}

// Matches reports whether the concrete instance satisfies the spec s used
// as a predicate. Every constrained field must hold:
//
//   - the version constraint admits c's version,
//   - every variant assignment in s equals c's assignment (a variant that
//     is not active on c fails the predicate),
//   - the compiler constraint, if any, names c's compiler and admits its
//     version.
//
// An empty anonymous spec matches everything. Guard ("when") clauses and
// conflict matchers in recipes evaluate through this method.
func (s *Spec) Matches(c *Concrete) bool {
	if !s.IsAnonymous() && s.Name != c.Name {
		return false
	}
	if !s.Version.IsAny() && !s.Version.Admits(c.Version) {
		return false
	}
	for name, want := range s.Variants {
		got, ok := c.Variants[name]
		if !ok || got != want {
			return false
		}
	}
	if s.Compiler != nil {
		if s.Compiler.Name != c.Compiler.Name {
			return false
		}
		if !s.Compiler.Version.IsAny() && !s.Compiler.Version.Admits(c.Compiler.Version) {
			return false
		}
	}
	return true
}
