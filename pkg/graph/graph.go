// Package graph provides the directed acyclic graph underlying resolved
// build graphs.
//
// Nodes are identified by string IDs and carry arbitrary metadata; edges
// are directed parent-to-dependency connections. The graph records
// insertion in deterministic structures so that Nodes, Edges, and
// TopoSort always return the same order for the same content, which keeps
// resolution output byte-for-byte reproducible.
package graph

import (
	"errors"
	"sort"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with
	// the same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From
	// node does not exist in the graph.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [Graph.Validate] and [Graph.TopoSort]
	// when a cycle is detected. Cycles are detected using depth-first
	// search with white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or edges.
// Metadata maps are never nil after AddNode/AddEdge.
type Metadata map[string]any

// Node is a vertex in the graph.
//
// The zero value is not usable - ID must be set before adding to a Graph.
type Node struct {
	ID   string   // Unique identifier
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge is a directed connection from a parent to one of its dependencies.
type Edge struct {
	From string   // Source node ID
	To   string   // Target node ID
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)
}

// Graph is a directed graph with deterministic iteration order.
//
// The zero value is not usable - use New to create a valid Graph instance.
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string]int      // nodeID -> indegree
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string]int),
	}
}

// AddNode inserts a node. It fails with ErrInvalidNodeID for empty IDs and
// ErrDuplicateNodeID when the ID is already present.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = make(Metadata)
	}
	g.nodes[n.ID] = &n
	return nil
}

// AddEdge inserts a directed edge. Both endpoints must already exist.
// Inserting the same (From, To) pair twice is a no-op that keeps the first
// edge's metadata.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	for _, child := range g.outgoing[e.From] {
		if child == e.To {
			return nil
		}
	}
	if e.Meta == nil {
		e.Meta = make(Metadata)
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To]++
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns all edges sorted by (From, To).
func (g *Graph) Edges() []Edge {
	out := append([]Edge(nil), g.edges...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Children returns the IDs of the direct dependencies of id, sorted.
func (g *Graph) Children(id string) []string {
	out := append([]string(nil), g.outgoing[id]...)
	sort.Strings(out)
	return out
}

// Roots returns the IDs of nodes with no incoming edge, sorted.
func (g *Graph) Roots() []string {
	var out []string
	for id := range g.nodes {
		if g.incoming[id] == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the acyclicity invariant, returning ErrGraphHasCycle if
// any directed cycle exists.
func (g *Graph) Validate() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		for _, child := range g.Children(id) {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, n := range g.Nodes() {
		if color[n.ID] == white && dfs(n.ID) {
			return ErrGraphHasCycle
		}
	}
	return nil
}

// TopoSort returns the node IDs in dependency-last order: every node
// appears before all nodes it has edges to. Ties break lexically, so the
// order is deterministic. Returns ErrGraphHasCycle if no such order exists.
//
// The reverse of this order is a valid build order (dependencies first).
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = g.incoming[id]
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)

		freed := false
		for _, child := range g.outgoing[id] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
				freed = true
			}
		}
		if freed {
			sort.Strings(ready)
		}
	}

	if len(out) != len(g.nodes) {
		return nil, ErrGraphHasCycle
	}
	return out, nil
}
