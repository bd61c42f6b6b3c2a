package solver

import (
	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

// requirement is one constraint imposed on a package: by a root request
// (empty parent) or by an active dependency rule of a fixed parent.
type requirement struct {
	parent string     // requiring package, "" for root requests
	dep    *spec.Spec // constraints imposed on the target
	when   *spec.Spec // the guard that activated the rule, nil for roots
}

// domain is the set of concrete assignments still possible for one
// unresolved package. Versions keep their preference order and only ever
// shrink; variants are either pinned to one value by a requirement or left
// free for the candidate iterator to enumerate.
type domain struct {
	pkg      string
	versions []version.Version     // remaining candidates, preference order
	pinned   map[string]spec.Value // variant name -> required value
	pinnedBy map[string]string     // variant name -> requiring parent
	compiler *spec.CompilerSpec    // merged compiler constraint, nil if free
	reqs     []requirement
}

// newDomain returns the unconstrained domain of a package.
func newDomain(r *recipe.Recipe) *domain {
	return &domain{
		pkg:      r.Name,
		versions: r.OrderedVersions(),
		pinned:   make(map[string]spec.Value),
		pinnedBy: make(map[string]string),
	}
}

// clone returns a deep copy; snapshots taken at choice points restore
// through it.
func (d *domain) clone() *domain {
	c := &domain{
		pkg:      d.pkg,
		versions: append([]version.Version(nil), d.versions...),
		pinned:   make(map[string]spec.Value, len(d.pinned)),
		pinnedBy: make(map[string]string, len(d.pinnedBy)),
		reqs:     append([]requirement(nil), d.reqs...),
	}
	for k, v := range d.pinned {
		c.pinned[k] = v
	}
	for k, v := range d.pinnedBy {
		c.pinnedBy[k] = v
	}
	if d.compiler != nil {
		cc := *d.compiler
		c.compiler = &cc
	}
	return c
}

// empty reports whether no version candidate remains.
func (d *domain) empty() bool { return len(d.versions) == 0 }

// size estimates the number of concrete assignments left, for the
// most-constrained-first selection heuristic. Free variants multiply the
// estimate by their domain size; the estimate saturates to avoid overflow.
func (d *domain) size(r *recipe.Recipe) int {
	const sizeCap = 1 << 20
	n := len(d.versions)
	for _, v := range r.Variants {
		if _, ok := d.pinned[v.Name]; ok {
			continue
		}
		n *= len(v.Domain())
		if n > sizeCap {
			return sizeCap
		}
	}
	return n
}

// conflictCode picks the failure code for two disagreeing requirements:
// disagreement between two different requirers is a diamond conflict,
// anything else a plain conflicting constraint.
func conflictCode(a, b string) errors.Code {
	if a != b {
		return errors.ErrCodeDiamondConflict
	}
	return errors.ErrCodeConflictingConstraint
}

// addRequirement narrows the domain by req. It fails when the requirement
// contradicts an earlier one (pinned variant, compiler name) or empties the
// version candidate list; the domain is left unchanged on failure only for
// the contradicted field, so callers must treat any error as fatal for the
// current choice point and restore from a snapshot.
func (d *domain) addRequirement(req requirement) error {
	if !req.dep.Version.IsAny() {
		narrowed := req.dep.Version.Filter(d.versions)
		if len(narrowed) == 0 {
			code := errors.ErrCodeUnsatisfiable
			if len(d.reqs) > 0 && req.parent != d.lastRequirer() {
				code = errors.ErrCodeDiamondConflict
			}
			return errors.New(code,
				"%s: no declared version satisfies @%s (required by %s)",
				d.pkg, req.dep.Version, requirerName(req.parent))
		}
		d.versions = narrowed
	}

	for name, val := range req.dep.Variants {
		if prev, ok := d.pinned[name]; ok {
			if prev != val {
				return errors.New(conflictCode(d.pinnedBy[name], req.parent),
					"%s: variant %s required as %s by %s but as %s by %s",
					d.pkg, name, prev, requirerName(d.pinnedBy[name]), val, requirerName(req.parent))
			}
			continue
		}
		d.pinned[name] = val
		d.pinnedBy[name] = req.parent
	}

	if req.dep.Compiler != nil {
		if d.compiler == nil {
			cc := *req.dep.Compiler
			d.compiler = &cc
		} else {
			if d.compiler.Name != req.dep.Compiler.Name {
				return errors.New(errors.ErrCodeDiamondConflict,
					"%s: compiler required as %%%s and %%%s", d.pkg, d.compiler.Name, req.dep.Compiler.Name)
			}
			d.compiler.Version = d.compiler.Version.And(req.dep.Compiler.Version)
		}
	}

	d.reqs = append(d.reqs, req)
	return nil
}

// lastRequirer returns the parent of the most recent requirement.
func (d *domain) lastRequirer() string {
	if len(d.reqs) == 0 {
		return ""
	}
	return d.reqs[len(d.reqs)-1].parent
}

func requirerName(parent string) string {
	if parent == "" {
		return "the request"
	}
	return parent
}

// admittedCompilers filters the index compilers through the merged
// compiler constraint, preserving preference order.
func (d *domain) admittedCompilers(available []spec.Compiler) []spec.Compiler {
	if d.compiler == nil {
		return available
	}
	var out []spec.Compiler
	for _, c := range available {
		if c.Name != d.compiler.Name {
			continue
		}
		if !d.compiler.Version.IsAny() && !d.compiler.Version.Admits(c.Version) {
			continue
		}
		out = append(out, c)
	}
	return out
}
