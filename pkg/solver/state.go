package solver

import (
	"sort"

	"github.com/constracktor/concretor/pkg/spec"
)

// state is the mutable search position: the still-open domains, the
// packages already fixed to a concrete instance, and the dependency edges
// established so far. Choice points snapshot the whole state and restore
// it wholesale on backtrack; Concrete values are immutable so fixed
// instances are shared between snapshots.
type state struct {
	domains map[string]*domain
	fixed   map[string]*spec.Concrete
	deps    map[string]map[string]bool // parent -> children required so far
}

func newState() *state {
	return &state{
		domains: make(map[string]*domain),
		fixed:   make(map[string]*spec.Concrete),
		deps:    make(map[string]map[string]bool),
	}
}

func (st *state) clone() *state {
	c := &state{
		domains: make(map[string]*domain, len(st.domains)),
		fixed:   make(map[string]*spec.Concrete, len(st.fixed)),
		deps:    make(map[string]map[string]bool, len(st.deps)),
	}
	for k, d := range st.domains {
		c.domains[k] = d.clone()
	}
	for k, v := range st.fixed {
		c.fixed[k] = v
	}
	for k, kids := range st.deps {
		m := make(map[string]bool, len(kids))
		for kid := range kids {
			m[kid] = true
		}
		c.deps[k] = m
	}
	return c
}

func (st *state) addDep(parent, child string) {
	if st.deps[parent] == nil {
		st.deps[parent] = make(map[string]bool)
	}
	st.deps[parent][child] = true
}

// reaches reports whether to is reachable from from along the dependency
// edges established so far. Requiring an ancestor would close a cycle.
func (st *state) reaches(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for kid := range st.deps[n] {
			if kid == to {
				return true
			}
			if !seen[kid] {
				seen[kid] = true
				stack = append(stack, kid)
			}
		}
	}
	return false
}

// open returns the names of packages with a domain but no fixed instance,
// sorted for deterministic selection.
func (st *state) open() []string {
	var out []string
	for name := range st.domains {
		if _, ok := st.fixed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
