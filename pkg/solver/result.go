package solver

import (
	"sort"

	"github.com/constracktor/concretor/pkg/graph"
	"github.com/constracktor/concretor/pkg/spec"
)

// Edge is one resolved dependency relation, annotated with the rule that
// produced it.
type Edge struct {
	Parent string
	Child  string
	Dep    *spec.Spec // the constraint the rule imposed on Child
	When   *spec.Spec // the guard that activated the rule, nil if none
}

// Graph is the result of a solve: every transitively required package
// fixed to exactly one concrete instance, plus the dependency edges whose
// rules were active. Accessors return sorted copies; a Graph is immutable
// and safe for concurrent reads.
type Graph struct {
	nodes map[string]*spec.Concrete
	edges []Edge
	roots []string
}

// emit builds the result graph from a complete state. Edges are
// recomputed from the recipe rules against the final instances, in sorted
// node order and declaration rule order, so equal solves render
// byte-identically.
func (s *Solver) emit(st *state, rootNames []string) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*spec.Concrete, len(st.fixed))}

	names := make([]string, 0, len(st.fixed))
	for name, c := range st.fixed {
		g.nodes[name] = c
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r, _ := s.index.Get(name)
		for _, rule := range r.Dependencies {
			if !rule.Active(g.nodes[name]) {
				continue
			}
			g.edges = append(g.edges, Edge{
				Parent: name,
				Child:  rule.Spec.Name,
				Dep:    rule.Spec,
				When:   rule.When,
			})
		}
	}

	seen := make(map[string]bool, len(rootNames))
	for _, name := range rootNames {
		if !seen[name] {
			seen[name] = true
			g.roots = append(g.roots, name)
		}
	}
	sort.Strings(g.roots)

	return g, nil
}

// Len returns the number of resolved packages.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the concrete instance of the named package.
func (g *Graph) Node(name string) (*spec.Concrete, bool) {
	c, ok := g.nodes[name]
	return c, ok
}

// Nodes returns every resolved instance, sorted by package name.
func (g *Graph) Nodes() []*spec.Concrete {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*spec.Concrete, len(names))
	for i, name := range names {
		out[i] = g.nodes[name]
	}
	return out
}

// Edges returns the dependency edges, sorted by parent then child.
func (g *Graph) Edges() []Edge {
	out := append([]Edge(nil), g.edges...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		return out[i].Child < out[j].Child
	})
	return out
}

// Roots returns the names of the requested packages, sorted.
func (g *Graph) Roots() []string {
	return append([]string(nil), g.roots...)
}

// Children returns the sorted dependency names of one package.
func (g *Graph) Children(name string) []string {
	var out []string
	for _, e := range g.edges {
		if e.Parent == name {
			out = append(out, e.Child)
		}
	}
	sort.Strings(out)
	return out
}

// Order returns a build order: every package appears after all of its
// dependencies. Ties break lexically, so the order is deterministic.
func (g *Graph) Order() ([]string, error) {
	topo, err := g.DAG().TopoSort()
	if err != nil {
		return nil, err
	}
	// TopoSort yields parents before children; builds go bottom-up.
	for i, j := 0, len(topo)-1; i < j; i, j = i+1, j-1 {
		topo[i], topo[j] = topo[j], topo[i]
	}
	return topo, nil
}

// DAG converts the result into a generic directed graph. Node metadata
// carries the concrete instance under "concrete"; edge metadata carries
// the dependency constraint under "dep".
func (g *Graph) DAG() *graph.Graph {
	dg := graph.New()
	for _, c := range g.Nodes() {
		_ = dg.AddNode(graph.Node{ID: c.Name, Meta: graph.Metadata{"concrete": c}})
	}
	for _, e := range g.Edges() {
		_ = dg.AddEdge(graph.Edge{From: e.Parent, To: e.Child, Meta: graph.Metadata{"dep": e.Dep.String()}})
	}
	return dg
}
