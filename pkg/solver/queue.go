package solver

import (
	"fmt"
	"strings"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/spec"
	"github.com/constracktor/concretor/pkg/version"
)

// failedCandidate records one eliminated candidate and the reason.
type failedCandidate struct {
	candidate *spec.Concrete
	reason    error
}

// exhaustedError is the reason attached when a package runs out of
// candidates: it carries the per-candidate failures, which chain upward
// through backtracking into the final conflict trace.
type exhaustedError struct {
	pkg   string
	fails []failedCandidate
}

func (e *exhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no remaining candidate for %s", e.pkg)
	for _, f := range e.fails {
		fmt.Fprintf(&b, "\n  %s rejected: %s", f.candidate, indent(f.reason.Error()))
	}
	return b.String()
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}

// candidateQueue yields the concrete candidates of one package domain in
// deterministic preference order: versions first (preferred, then newest
// release, then named), the variant assignment matching declared defaults
// before any other, compilers in index preference order. Candidates are
// produced on demand; nothing past the current one is materialized. Failed
// candidates are recorded with the error that eliminated them.
type candidateQueue struct {
	pkg       string
	r         *recipe.Recipe
	d         *domain
	compilers []spec.Compiler

	vi     int         // cursor into d.versions
	assign *assignment // variant odometer for the current version
	ci     int         // cursor into compilers
	cur    *spec.Concrete
	done   bool
	fails  []failedCandidate
}

// newCandidateQueue positions a queue at the first candidate of d without
// producing it yet. A domain no available compiler satisfies is rejected
// up front and recorded as a failure.
func newCandidateQueue(r *recipe.Recipe, d *domain, compilers []spec.Compiler) *candidateQueue {
	q := &candidateQueue{pkg: d.pkg, r: r, d: d}

	q.compilers = d.admittedCompilers(compilers)
	if len(q.compilers) == 0 {
		want := "any"
		if d.compiler != nil {
			want = "%" + d.compiler.Name
			if !d.compiler.Version.IsAny() {
				want += "@" + d.compiler.Version.String()
			}
		}
		q.fails = append(q.fails, failedCandidate{
			candidate: &spec.Concrete{Name: d.pkg},
			reason:    errors.New(errors.ErrCodeUnknownCompiler, "%s: no available compiler satisfies %s", d.pkg, want),
		})
		q.done = true
	}
	return q
}

// current returns the candidate under consideration, producing it on
// demand, or nil when the queue is exhausted. The candidate stays current
// until advance removes it, so a backtracked fixing can still be recorded
// against it.
func (q *candidateQueue) current() *spec.Concrete {
	for q.cur == nil && !q.done {
		if q.vi >= len(q.d.versions) {
			q.done = true
			return nil
		}
		v := q.d.versions[q.vi]
		if q.assign == nil {
			q.assign = newAssignment(q.r, q.d, v)
		}
		if name, ok := q.assign.missingPin(); ok {
			// An assignment that cannot carry a pinned variant can never
			// satisfy the pin; reject it without offering it.
			q.fails = append(q.fails, failedCandidate{
				candidate: &spec.Concrete{Name: q.pkg, Version: v, Variants: q.assign.values()},
				reason: errors.New(errors.ErrCodeUnsatisfiable,
					"%s@%s: variant %s=%s required by %s, but the variant is not active here",
					q.pkg, v, name, q.d.pinned[name], requirerName(q.d.pinnedBy[name])),
			})
			q.step(true)
			continue
		}
		q.cur = &spec.Concrete{
			Name:     q.pkg,
			Version:  v,
			Variants: q.assign.values(),
			Compiler: q.compilers[q.ci],
		}
	}
	return q.cur
}

// advance records why the current candidate was eliminated and moves on.
func (q *candidateQueue) advance(reason error) {
	if q.current() == nil {
		return
	}
	q.fails = append(q.fails, failedCandidate{candidate: q.cur, reason: reason})
	q.cur = nil
	q.step(false)
}

// step moves the cursors to the next point of the version, assignment and
// compiler product. With skipAssignment set, the remaining compilers of
// the current assignment are passed over.
func (q *candidateQueue) step(skipAssignment bool) {
	if !skipAssignment && q.ci+1 < len(q.compilers) {
		q.ci++
		return
	}
	q.ci = 0
	if q.assign == nil || !q.assign.next() {
		q.assign = nil
		q.vi++
	}
}

// exhausted wraps the recorded failures into the reason reported to the
// requiring parent.
func (q *candidateQueue) exhausted() *exhaustedError {
	return &exhaustedError{pkg: q.pkg, fails: q.fails}
}

// assignment is an odometer over the variant values of one version. Slots
// follow declaration order; a slot is active when its guard matches the
// values chosen before it. Pinned variants hold their single value, free
// variants start at the declared default and then walk the remaining
// domain in declared order.
type assignment struct {
	r     *recipe.Recipe
	d     *domain
	v     version.Version
	slots []valueSlot
}

type valueSlot struct {
	variant *recipe.Variant
	active  bool
	values  []spec.Value
	idx     int
}

// newAssignment builds the first assignment for v: every active variant
// at its first value.
func newAssignment(r *recipe.Recipe, d *domain, v version.Version) *assignment {
	a := &assignment{r: r, d: d, v: v, slots: make([]valueSlot, len(r.Variants))}
	for i, variant := range r.Variants {
		a.slots[i].variant = variant
	}
	a.rebuild(0)
	return a
}

// rebuild recomputes slots[from:] against the values chosen before them,
// resetting each active slot to its first value. Changing an earlier value
// can flip the activation of later guards, so their suffix always starts
// over.
func (a *assignment) rebuild(from int) {
	partial := make(map[string]spec.Value, len(a.slots))
	for i := 0; i < from; i++ {
		if s := &a.slots[i]; s.active {
			partial[s.variant.Name] = s.values[s.idx]
		}
	}
	for i := from; i < len(a.slots); i++ {
		s := &a.slots[i]
		probe := &spec.Concrete{Name: a.r.Name, Version: a.v, Variants: partial}
		if s.variant.When != nil && !s.variant.When.Matches(probe) {
			s.active = false
			continue
		}
		s.active = true
		s.values = orderedValues(s.variant, a.d)
		s.idx = 0
		partial[s.variant.Name] = s.values[0]
	}
}

// next advances to the following assignment, returning false when none
// remain. The rightmost slot with values left is bumped and everything
// after it rebuilt.
func (a *assignment) next() bool {
	for i := len(a.slots) - 1; i >= 0; i-- {
		s := &a.slots[i]
		if !s.active || s.idx+1 >= len(s.values) {
			continue
		}
		s.idx++
		a.rebuild(i + 1)
		return true
	}
	return false
}

// values materializes the active slots into a variant assignment.
func (a *assignment) values() map[string]spec.Value {
	out := make(map[string]spec.Value, len(a.slots))
	for _, s := range a.slots {
		if s.active {
			out[s.variant.Name] = s.values[s.idx]
		}
	}
	return out
}

// missingPin reports a pinned variant that is not active under the
// current assignment.
func (a *assignment) missingPin() (string, bool) {
	for _, s := range a.slots {
		if s.active {
			continue
		}
		if _, ok := a.d.pinned[s.variant.Name]; ok {
			return s.variant.Name, true
		}
	}
	return "", false
}

// orderedValues returns the values to try for one variant: the pinned
// value alone, or the default followed by the remaining domain.
func orderedValues(variant *recipe.Variant, d *domain) []spec.Value {
	if val, ok := d.pinned[variant.Name]; ok {
		return []spec.Value{val}
	}
	out := []spec.Value{variant.Default}
	for _, val := range variant.Domain() {
		if val != variant.Default {
			out = append(out, val)
		}
	}
	return out
}
