// Package plan turns a resolved dependency graph into a serializable
// install plan: the concrete instances, the dependency edges, and a build
// order. Every encoding is canonical, so the same resolution always
// produces the same bytes and the same digest.
package plan

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/solver"
)

// Node is one package instance of the plan.
type Node struct {
	Name     string            `json:"name" yaml:"name"`
	Version  string            `json:"version" yaml:"version"`
	Variants map[string]string `json:"variants,omitempty" yaml:"variants,omitempty"`
	Compiler string            `json:"compiler" yaml:"compiler"`
	Spec     string            `json:"spec" yaml:"spec"`
}

// Edge is one dependency relation of the plan. Requirement records the
// constraint the parent's rule imposed, Condition the guard that activated
// it (empty when unconditional).
type Edge struct {
	Parent      string `json:"parent" yaml:"parent"`
	Child       string `json:"child" yaml:"child"`
	Requirement string `json:"requirement" yaml:"requirement"`
	Condition   string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Plan is the canonical install plan. Nodes are sorted by name, edges by
// parent then child, and Order lists packages dependencies-first.
type Plan struct {
	Roots []string `json:"roots" yaml:"roots"`
	Nodes []Node   `json:"nodes" yaml:"nodes"`
	Edges []Edge   `json:"edges,omitempty" yaml:"edges,omitempty"`
	Order []string `json:"order" yaml:"order"`
}

// FromGraph builds the plan for a resolved graph.
func FromGraph(g *solver.Graph) (*Plan, error) {
	order, err := g.Order()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolved graph has no build order")
	}

	p := &Plan{
		Roots: g.Roots(),
		Order: order,
	}

	for _, c := range g.Nodes() {
		n := Node{
			Name:     c.Name,
			Version:  c.Version.String(),
			Compiler: c.Compiler.String(),
			Spec:     c.String(),
		}
		if len(c.Variants) > 0 {
			n.Variants = make(map[string]string, len(c.Variants))
			for k, v := range c.Variants {
				n.Variants[k] = string(v)
			}
		}
		p.Nodes = append(p.Nodes, n)
	}

	for _, e := range g.Edges() {
		pe := Edge{
			Parent:      e.Parent,
			Child:       e.Child,
			Requirement: e.Dep.String(),
		}
		if e.When != nil {
			pe.Condition = e.When.String()
		}
		p.Edges = append(p.Edges, pe)
	}

	return p, nil
}

// Node returns the plan node of the named package.
func (p *Plan) Node(name string) (Node, bool) {
	i := sort.Search(len(p.Nodes), func(i int) bool { return p.Nodes[i].Name >= name })
	if i < len(p.Nodes) && p.Nodes[i].Name == name {
		return p.Nodes[i], true
	}
	return Node{}, false
}

// EncodeJSON writes the canonical indented JSON form. Map keys serialize
// sorted, so the output is byte-stable.
func (p *Plan) EncodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode plan")
	}
	return nil
}

// EncodeYAML writes the canonical YAML form.
func (p *Plan) EncodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode plan")
	}
	return enc.Close()
}

// Digest returns the hex SHA-256 of the canonical JSON form. Two plans
// with the same digest describe the same installation.
func (p *Plan) Digest() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash plan")
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
