// Package recipe models per-package build recipes and the loaded recipe
// index the solver resolves against.
//
// A Recipe is the immutable declaration of one package: the versions that
// can be built, the variants (build options) with their legal values and
// defaults, conditional dependency rules, and declared conflicts. Recipes
// are loaded once into an Index and never mutated afterwards, so any number
// of concurrent resolutions can share one Index.
package recipe

import (
	"sort"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

// VersionDecl declares one buildable version of a package. Preferred
// versions are tried before anything else during resolution, matching the
// way recipe repositories pin a development branch as the default.
type VersionDecl struct {
	Version   version.Version
	Preferred bool
}

// Variant declares one build option. A variant with no Values list is
// boolean; otherwise it is enumerated over exactly the listed values.
//
// When restricts the versions (and earlier variants) for which the variant
// exists at all: a variant guarded by "@0.1.0:" is simply absent from
// instances of older versions, and a concrete instance assigns exactly the
// active variant set.
type Variant struct {
	Name        string
	Values      []spec.Value // nil for boolean variants
	Default     spec.Value
	When        *spec.Spec // nil means always active
	Description string
}

// IsBool reports whether the variant is boolean.
func (v *Variant) IsBool() bool { return len(v.Values) == 0 }

// Domain returns the legal values: true/false for boolean variants, the
// declared values (in declaration order) otherwise.
func (v *Variant) Domain() []spec.Value {
	if v.IsBool() {
		return []spec.Value{spec.ValueTrue, spec.ValueFalse}
	}
	return v.Values
}

// InDomain reports whether val is legal for this variant.
func (v *Variant) InDomain(val spec.Value) bool {
	for _, d := range v.Domain() {
		if d == val {
			return true
		}
	}
	return false
}

// Dependency is one conditional dependency rule: when the guard matches the
// parent's concrete form, the parent requires a package satisfying Spec.
type Dependency struct {
	// Spec names the required package and the constraints imposed on it.
	Spec *spec.Spec
	// When guards the rule; nil activates it unconditionally. The guard is
	// an anonymous spec evaluated against the parent's concrete form.
	When *spec.Spec
}

// Active reports whether the rule applies to the given concrete parent.
func (d Dependency) Active(parent *spec.Concrete) bool {
	return d.When == nil || d.When.Matches(parent)
}

// Conflict declares a forbidden configuration: a concrete instance matching
// both Spec and When is invalid.
type Conflict struct {
	Spec    *spec.Spec
	When    *spec.Spec
	Message string
}

// Forbids reports whether the concrete instance hits this conflict.
func (c Conflict) Forbids(node *spec.Concrete) bool {
	if !c.Spec.Matches(node) {
		return false
	}
	return c.When == nil || c.When.Matches(node)
}

// Recipe is the immutable declaration of one package.
type Recipe struct {
	Name         string
	Versions     []VersionDecl // declaration order
	Variants     []*Variant    // declaration order
	Dependencies []Dependency
	Conflicts    []Conflict

	variantIdx map[string]*Variant
}

// Variant returns the declared variant by name.
func (r *Recipe) Variant(name string) (*Variant, bool) {
	v, ok := r.variantIdx[name]
	return v, ok
}

// HasVersion reports whether v is a declared version of the package.
func (r *Recipe) HasVersion(v version.Version) bool {
	for _, d := range r.Versions {
		if d.Version.Equal(v) {
			return true
		}
	}
	return false
}

// OrderedVersions returns the declared versions in resolution preference
// order: preferred versions first (declaration order), then releases newest
// first, then named versions in declaration order. The ordering is total
// and deterministic, which makes resolutions reproducible.
func (r *Recipe) OrderedVersions() []version.Version {
	var preferred, releases, named []version.Version
	for _, d := range r.Versions {
		switch {
		case d.Preferred:
			preferred = append(preferred, d.Version)
		case d.Version.IsNamed():
			named = append(named, d.Version)
		default:
			releases = append(releases, d.Version)
		}
	}
	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].Compare(releases[j]) > 0
	})

	out := make([]version.Version, 0, len(r.Versions))
	out = append(out, preferred...)
	out = append(out, releases...)
	out = append(out, named...)
	return out
}

// ValidateSpec checks that every variant a request constrains is declared
// by this recipe with a legal value. It does not check activation guards:
// whether a constrained variant is active for the finally chosen version is
// the solver's concern.
func (r *Recipe) ValidateSpec(s *spec.Spec) error {
	if !s.IsAnonymous() && s.Name != r.Name {
		return errors.New(errors.ErrCodeInvalidSpec, "spec %s validated against recipe %s", s.Name, r.Name)
	}
	for name, val := range s.Variants {
		v, ok := r.Variant(name)
		if !ok {
			return errors.New(errors.ErrCodeUnknownVariant, "package %s has no variant %q", r.Name, name)
		}
		if !v.InDomain(val) {
			return errors.New(errors.ErrCodeInvalidVariantValue,
				"%s: value %q is not legal for variant %s", r.Name, val, name)
		}
	}
	return nil
}
