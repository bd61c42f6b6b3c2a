// Package solver turns a set of requested specs into a complete, conflict
// free assignment of concrete package instances.
//
// Resolution is backtracking search over per-package domains. Requirements
// from the request and from dependency rules of already fixed packages
// narrow each domain eagerly; when a package runs out of candidates the
// solver unwinds to the most recent choice point, rejects the candidate
// chosen there, and continues with the next one. Candidate order is fully
// deterministic (version preference, declared variant defaults first,
// compiler preference), so equal inputs always produce equal results.
package solver

import (
	"context"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/spec"
)

// DefaultMaxSteps bounds the number of candidate attempts before a solve
// is aborted as runaway.
const DefaultMaxSteps = 1 << 16

// Options tunes a Solver. The zero value is usable.
type Options struct {
	// MaxSteps caps candidate attempts; 0 means DefaultMaxSteps, a
	// negative value disables the cap.
	MaxSteps int

	// Logf, when set, receives progress lines during the solve.
	Logf func(format string, args ...any)
}

// Solver resolves requests against one immutable recipe index. A Solver is
// safe for concurrent use; every Solve call carries its own search state.
type Solver struct {
	index    *recipe.Index
	maxSteps int
	logf     func(format string, args ...any)
}

// New returns a Solver over the given index.
func New(ix *recipe.Index, opts Options) *Solver {
	steps := opts.MaxSteps
	if steps == 0 {
		steps = DefaultMaxSteps
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Solver{index: ix, maxSteps: steps, logf: logf}
}

// choicePoint is one entry of the backtracking stack: the package fixed
// there, its remaining candidates, and the state snapshot taken before the
// fix.
type choicePoint struct {
	pkg   string
	queue *candidateQueue
	saved *state
}

// Solve resolves the requested specs into a dependency graph of concrete
// instances. Each root spec must name a declared package; anonymous specs
// are rejected. The returned graph contains every transitively required
// package exactly once.
//
// The error, if any, carries the code of the dominant failure:
// [errors.ErrCodeDiamondConflict] or [errors.ErrCodeCyclicDependency] when
// every dead end hit that condition, [errors.ErrCodeUnsatisfiable]
// otherwise, and [errors.ErrCodeResolutionAborted] when ctx was cancelled
// or the step cap was exceeded.
func (s *Solver) Solve(ctx context.Context, roots []*spec.Spec) (*Graph, error) {
	st := newState()
	rootNames := make([]string, 0, len(roots))

	for _, root := range roots {
		if root.IsAnonymous() {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "request spec %q does not name a package", root)
		}
		r, ok := s.index.Get(root.Name)
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownPackage, "no recipe for requested package %s", root.Name)
		}
		if err := r.ValidateSpec(root); err != nil {
			return nil, err
		}
		if st.domains[root.Name] == nil {
			st.domains[root.Name] = newDomain(r)
		}
		if err := st.domains[root.Name].addRequirement(requirement{dep: root}); err != nil {
			return nil, err
		}
		rootNames = append(rootNames, root.Name)
	}

	var stack []*choicePoint
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeResolutionAborted, err, "resolution aborted")
		}

		pick := s.pickOpen(st)
		if pick == "" {
			s.logf("solve complete: %d packages, %d steps", len(st.fixed), steps)
			return s.emit(st, rootNames)
		}

		r, _ := s.index.Get(pick)
		cp := &choicePoint{
			pkg:   pick,
			queue: newCandidateQueue(r, st.domains[pick], s.index.Compilers()),
			saved: st,
		}

	attempt:
		for {
			steps++
			if s.maxSteps > 0 && steps > s.maxSteps {
				return nil, errors.New(errors.ErrCodeResolutionAborted,
					"resolution aborted after %d candidate attempts", s.maxSteps)
			}

			cand := cp.queue.current()
			if cand == nil {
				// Unwind: reject the candidate chosen at the nearest
				// choice point and resume there.
				reason := error(cp.queue.exhausted())
				for {
					if len(stack) == 0 {
						return nil, terminalError(cp.queue.exhausted())
					}
					cp = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					cp.queue.advance(reason)
					if cp.queue.current() != nil {
						s.logf("backtrack to %s", cp.pkg)
						break
					}
					reason = cp.queue.exhausted()
				}
				continue attempt
			}

			next := cp.saved.clone()
			if err := s.tryFix(next, cand); err != nil {
				cp.queue.advance(err)
				continue attempt
			}

			s.logf("fix %s", cand)
			st = next
			stack = append(stack, cp)
			break attempt
		}
	}
}

// pickOpen selects the next package to fix: the open domain with the
// fewest remaining concrete assignments, ties broken by name.
func (s *Solver) pickOpen(st *state) string {
	best := ""
	bestSize := 0
	for _, name := range st.open() {
		r, _ := s.index.Get(name)
		size := st.domains[name].size(r)
		if best == "" || size < bestSize {
			best, bestSize = name, size
		}
	}
	return best
}

// tryFix commits cand into st: it checks declared conflicts and the
// accumulated requirements, then propagates cand's active dependency rules
// into the target domains. st is mutated; callers discard it on error.
func (s *Solver) tryFix(st *state, cand *spec.Concrete) error {
	r, _ := s.index.Get(cand.Name)

	for _, c := range r.Conflicts {
		if c.Forbids(cand) {
			msg := c.Message
			if msg == "" {
				msg = "conflicts with " + c.Spec.String()
			}
			return errors.New(errors.ErrCodeConflictDeclared, "%s: %s", cand, msg)
		}
	}

	// The domain narrows eagerly, but a pinned variant can still be
	// inactive on one assignment branch, so every requirement is
	// re-checked against the full candidate.
	for _, req := range st.domains[cand.Name].reqs {
		if !req.dep.Matches(cand) {
			return errors.New(errors.ErrCodeConflictingConstraint,
				"%s does not satisfy %s (required by %s)",
				cand, req.dep, requirerName(req.parent))
		}
	}

	st.fixed[cand.Name] = cand

	for _, rule := range r.Dependencies {
		if !rule.Active(cand) {
			continue
		}
		target := rule.Spec.Name

		if st.reaches(target, cand.Name) {
			return errors.New(errors.ErrCodeCyclicDependency,
				"%s requires %s, which already requires %s", cand.Name, target, cand.Name)
		}
		st.addDep(cand.Name, target)

		if fixed, ok := st.fixed[target]; ok {
			if !rule.Spec.Matches(fixed) {
				return errors.New(errors.ErrCodeDiamondConflict,
					"%s requires %s, but %s is already fixed", cand.Name, rule.Spec, fixed)
			}
			continue
		}

		if st.domains[target] == nil {
			tr, ok := s.index.Get(target)
			if !ok {
				return errors.New(errors.ErrCodeUnknownPackage, "no recipe for package %s", target)
			}
			st.domains[target] = newDomain(tr)
		}
		req := requirement{parent: cand.Name, dep: rule.Spec, when: rule.When}
		if err := st.domains[target].addRequirement(req); err != nil {
			return err
		}
		if st.domains[target].empty() {
			return errors.New(errors.ErrCodeUnsatisfiable,
				"%s: no version candidate remains after requirement by %s", target, cand.Name)
		}
	}
	return nil
}

// terminalError folds a failure trace into the error returned from Solve.
// The code is the dominant code across the trace: a uniform cause keeps
// its specific code, mixed causes collapse to UNSATISFIABLE.
func terminalError(exh *exhaustedError) error {
	codes := make(map[errors.Code]bool)
	collectCodes(exh, codes)

	code := errors.ErrCodeUnsatisfiable
	if len(codes) == 1 {
		for c := range codes {
			if c == errors.ErrCodeDiamondConflict || c == errors.ErrCodeCyclicDependency {
				code = c
			}
		}
	}
	return errors.Wrap(code, exh, "no valid assignment exists")
}

func collectCodes(err error, into map[errors.Code]bool) {
	if exh, ok := err.(*exhaustedError); ok {
		for _, f := range exh.fails {
			collectCodes(f.reason, into)
		}
		return
	}
	if code := errors.GetCode(err); code != "" {
		into[code] = true
	}
}
