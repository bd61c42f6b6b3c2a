package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

// DefaultCompiler is used when an index is built without explicit compiler
// declarations.
var DefaultCompiler = spec.Compiler{Name: "gcc", Version: version.MustParse("13.2.0")}

// Index is the loaded, immutable set of recipes a resolution runs against.
// Building the index validates cross-recipe references; it never checks for
// dependency cycles, since a guard may make an apparent cycle unreachable
// in every concrete resolution. Cycle detection is the solver's job.
type Index struct {
	recipes   map[string]*Recipe
	names     []string // sorted
	compilers []spec.Compiler
	digest    string
}

// Option configures index construction.
type Option func(*Index)

// WithCompilers declares the compilers available to resolutions over this
// index, in preference order.
func WithCompilers(cs ...spec.Compiler) Option {
	return func(ix *Index) {
		ix.compilers = append([]spec.Compiler(nil), cs...)
	}
}

// NewIndex builds an index from recipes, validating that:
//
//   - no package is declared twice,
//   - every recipe declares at least one version,
//   - variant defaults lie in the variant's domain,
//   - a variant's activation guard references only variants declared
//     before it (activation is decided in declaration order),
//   - every dependency rule targets a declared package, with variant
//     constraints that exist on the target,
//   - guard predicates reference only variants of the declaring package.
func NewIndex(recipes []*Recipe, opts ...Option) (*Index, error) {
	ix := &Index{recipes: make(map[string]*Recipe, len(recipes))}
	for _, opt := range opts {
		opt(ix)
	}
	if len(ix.compilers) == 0 {
		ix.compilers = []spec.Compiler{DefaultCompiler}
	}

	for _, r := range recipes {
		if err := errors.ValidateRecipeName(r.Name); err != nil {
			return nil, err
		}
		if _, dup := ix.recipes[r.Name]; dup {
			return nil, errors.New(errors.ErrCodeDuplicatePackage, "package %s declared twice", r.Name)
		}
		if err := validateRecipe(r); err != nil {
			return nil, err
		}
		ix.recipes[r.Name] = r
		ix.names = append(ix.names, r.Name)
	}
	sort.Strings(ix.names)

	// Cross-recipe checks need the full map.
	for _, name := range ix.names {
		if err := ix.validateRules(ix.recipes[name]); err != nil {
			return nil, err
		}
	}

	ix.digest = ix.computeDigest()
	return ix, nil
}

func validateRecipe(r *Recipe) error {
	if len(r.Versions) == 0 {
		return errors.New(errors.ErrCodeInvalidRecipe, "package %s declares no versions", r.Name)
	}

	r.variantIdx = make(map[string]*Variant, len(r.Variants))
	for i, v := range r.Variants {
		if err := errors.ValidateVariantName(v.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRecipe, err, "package %s", r.Name)
		}
		if _, dup := r.variantIdx[v.Name]; dup {
			return errors.New(errors.ErrCodeInvalidRecipe, "package %s declares variant %s twice", r.Name, v.Name)
		}
		if !v.InDomain(v.Default) {
			return errors.New(errors.ErrCodeInvalidRecipe,
				"package %s: default %q is not legal for variant %s", r.Name, v.Default, v.Name)
		}
		if v.When != nil {
			// Activation is decided variant by variant in declaration
			// order, so a guard may only look backwards.
			for name := range v.When.Variants {
				if !declaredBefore(r.Variants[:i], name) {
					return errors.New(errors.ErrCodeInvalidRecipe,
						"package %s: variant %s guard references %s, which is not declared before it",
						r.Name, v.Name, name)
				}
			}
		}
		r.variantIdx[v.Name] = v
	}
	return nil
}

func declaredBefore(earlier []*Variant, name string) bool {
	for _, v := range earlier {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (ix *Index) validateRules(r *Recipe) error {
	for _, d := range r.Dependencies {
		if d.Spec == nil || d.Spec.IsAnonymous() {
			return errors.New(errors.ErrCodeInvalidRecipe, "package %s has a dependency rule without a target", r.Name)
		}
		target, ok := ix.recipes[d.Spec.Name]
		if !ok {
			return errors.New(errors.ErrCodeUnknownPackage,
				"package %s depends on undeclared package %s", r.Name, d.Spec.Name)
		}
		if err := target.ValidateSpec(d.Spec); err != nil {
			return errors.Wrap(errors.GetCode(err), err, "package %s: dependency on %s", r.Name, d.Spec.Name)
		}
		if d.When != nil {
			if err := ix.validateGuard(r, d.When); err != nil {
				return err
			}
		}
	}
	for _, c := range r.Conflicts {
		if c.Spec == nil {
			return errors.New(errors.ErrCodeInvalidRecipe, "package %s has a conflict without a matcher", r.Name)
		}
		if err := ix.validateGuard(r, c.Spec); err != nil {
			return err
		}
		if c.When != nil {
			if err := ix.validateGuard(r, c.When); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateGuard checks a when-clause against the declaring recipe: every
// variant it references must exist there with a legal value.
func (ix *Index) validateGuard(r *Recipe, g *spec.Spec) error {
	for name, val := range g.Variants {
		v, ok := r.Variant(name)
		if !ok {
			return errors.New(errors.ErrCodeUnknownVariant,
				"package %s: guard references unknown variant %q", r.Name, name)
		}
		if !v.InDomain(val) {
			return errors.New(errors.ErrCodeInvalidVariantValue,
				"package %s: guard value %q is not legal for variant %s", r.Name, val, name)
		}
	}
	return nil
}

// Get returns the recipe for the named package.
func (ix *Index) Get(name string) (*Recipe, bool) {
	r, ok := ix.recipes[name]
	return r, ok
}

// Names returns the declared package names in sorted order.
func (ix *Index) Names() []string {
	return append([]string(nil), ix.names...)
}

// Len returns the number of declared packages.
func (ix *Index) Len() int { return len(ix.recipes) }

// Compilers returns the available compilers in preference order.
func (ix *Index) Compilers() []spec.Compiler {
	return append([]spec.Compiler(nil), ix.compilers...)
}

// Digest returns a stable content hash of the index: identical recipe sets
// and compiler declarations produce identical digests. Response caches key
// on it so stale plans are never served after recipes change.
func (ix *Index) Digest() string { return ix.digest }

func (ix *Index) computeDigest() string {
	h := sha256.New()
	for _, c := range ix.compilers {
		fmt.Fprintf(h, "compiler %s\n", c)
	}
	for _, name := range ix.names {
		r := ix.recipes[name]
		fmt.Fprintf(h, "package %s\n", r.Name)
		for _, v := range r.Versions {
			fmt.Fprintf(h, "version %s preferred=%v\n", v.Version, v.Preferred)
		}
		for _, v := range r.Variants {
			vals := make([]string, len(v.Values))
			for i, val := range v.Values {
				vals[i] = string(val)
			}
			fmt.Fprintf(h, "variant %s values=%s default=%s when=%s\n",
				v.Name, strings.Join(vals, "|"), v.Default, guardString(v.When))
		}
		for _, d := range r.Dependencies {
			fmt.Fprintf(h, "depends %s when=%s\n", d.Spec, guardString(d.When))
		}
		for _, c := range r.Conflicts {
			fmt.Fprintf(h, "conflicts %s when=%s msg=%s\n", c.Spec, guardString(c.When), c.Message)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func guardString(g *spec.Spec) string {
	if g == nil {
		return ""
	}
	return g.String()
}
