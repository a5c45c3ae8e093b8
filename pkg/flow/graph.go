package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/me/wolf/pkg/model"
)

// Edge records that instance To consumes an output of instance From.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Graph is a finalized task graph. It is never mutated after Finalize.
type Graph struct {
	instances  []*Instance
	index      map[string]*Instance
	deps       map[string][]string // instance -> upstream instances
	dependents map[string][]string // instance -> downstream instances
}

func newGraph(instances []*Instance, deps map[string][]string) *Graph {
	g := &Graph{
		instances:  make([]*Instance, len(instances)),
		index:      make(map[string]*Instance, len(instances)),
		deps:       make(map[string][]string, len(deps)),
		dependents: make(map[string][]string),
	}
	copy(g.instances, instances)
	for _, inst := range instances {
		g.index[inst.ID] = inst
	}
	for _, inst := range instances {
		up := append([]string(nil), deps[inst.ID]...)
		g.sortBySeq(up)
		g.deps[inst.ID] = up
		for _, from := range up {
			g.dependents[from] = append(g.dependents[from], inst.ID)
		}
	}
	for id := range g.dependents {
		g.sortBySeq(g.dependents[id])
	}
	return g
}

// sortBySeq orders instance IDs by registration order. Unknown IDs sort last.
func (g *Graph) sortBySeq(ids []string) {
	seq := func(id string) int {
		if inst, ok := g.index[id]; ok {
			return inst.Seq
		}
		return len(g.instances)
	}
	sort.SliceStable(ids, func(i, j int) bool { return seq(ids[i]) < seq(ids[j]) })
}

// Len returns the number of instances.
func (g *Graph) Len() int { return len(g.instances) }

// Instances returns all instances in registration order.
func (g *Graph) Instances() []*Instance {
	out := make([]*Instance, len(g.instances))
	copy(out, g.instances)
	return out
}

// Instance looks up an instance by ID.
func (g *Graph) Instance(id string) (*Instance, bool) {
	inst, ok := g.index[id]
	return inst, ok
}

// DependsOn returns the IDs of the instances id consumes outputs from.
func (g *Graph) DependsOn(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the IDs of the instances that consume outputs of id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Edges returns every edge, ordered by consumer then producer registration order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, inst := range g.instances {
		for _, from := range g.deps[inst.ID] {
			edges = append(edges, Edge{From: from, To: inst.ID})
		}
	}
	return edges
}

// Group returns the instances of a scatter group ordered by scatter index.
func (g *Graph) Group(group string) []*Instance {
	var out []*Instance
	for _, inst := range g.instances {
		if group != "" && inst.Group == group {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// TopologicalOrder returns the instances so that every instance follows
// all instances it depends on. Ties are broken by registration order.
// It uses Kahn's algorithm and fails with a CycleError if any instance
// can never become ready.
func (g *Graph) TopologicalOrder() ([]*Instance, error) {
	inDegree := make(map[string]int, len(g.instances))
	for _, inst := range g.instances {
		inDegree[inst.ID] = 0
	}
	for _, inst := range g.instances {
		for _, from := range g.deps[inst.ID] {
			if from == inst.ID {
				return nil, &model.CycleError{Instances: []string{inst.ID}}
			}
			inDegree[inst.ID]++
		}
	}

	var queue []string
	for _, inst := range g.instances {
		if inDegree[inst.ID] == 0 {
			queue = append(queue, inst.ID)
		}
	}

	order := make([]*Instance, 0, len(g.instances))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, g.index[id])

		for _, succ := range g.dependents[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		g.sortBySeq(queue)
	}

	if len(order) != len(g.instances) {
		var cycle []string
		for _, inst := range g.instances {
			if inDegree[inst.ID] > 0 {
				cycle = append(cycle, inst.ID)
			}
		}
		return nil, &model.CycleError{Instances: cycle}
	}
	return order, nil
}

// Fingerprint hashes the structure of the graph: node signatures, roles,
// literal bindings, and edges. Instance and group identities are replaced
// by their registration positions, so two graphs built by the same
// workflow code with the same arguments share a fingerprint.
func (g *Graph) Fingerprint() string {
	groups := make(map[string]int)
	h := sha256.New()
	for _, inst := range g.instances {
		group := ""
		if inst.Group != "" {
			if _, ok := groups[inst.Group]; !ok {
				groups[inst.Group] = len(groups)
			}
			group = fmt.Sprintf("g%d", groups[inst.Group])
		}
		fmt.Fprintf(h, "%d|%s|%s|%s|%d\n", inst.Seq, inst.Node.Signature(), inst.Role, group, inst.Index)
		for _, p := range inst.Node.Inputs {
			fmt.Fprintf(h, "  %s=%s\n", p.Name, g.canonical(inst.Inputs[p.Name]))
		}
		var up []string
		for _, from := range g.deps[inst.ID] {
			up = append(up, fmt.Sprint(g.index[from].Seq))
		}
		fmt.Fprintf(h, "  <- %s\n", strings.Join(up, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Graph) canonical(v any) string {
	switch x := v.(type) {
	case Handle:
		seq := -1
		if inst, ok := g.index[x.instance]; ok {
			seq = inst.Seq
		}
		return fmt.Sprintf("@%d/%s[%d]", seq, x.output, x.index)
	case Collection:
		return g.canonicalSlice(x.items)
	case []any:
		return g.canonicalSlice(x)
	case []Ref:
		items := make([]any, len(x))
		for i, r := range x {
			items[i] = r
		}
		return g.canonicalSlice(items)
	case []Handle:
		items := make([]any, len(x))
		for i, r := range x {
			items[i] = r
		}
		return g.canonicalSlice(items)
	case []Collection:
		items := make([]any, len(x))
		for i, r := range x {
			items[i] = r
		}
		return g.canonicalSlice(items)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func (g *Graph) canonicalSlice(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = g.canonical(it)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
