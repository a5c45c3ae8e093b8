package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/wolf/pkg/model"
)

// Format names a rendering of a Plan.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatDOT  Format = "dot"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatDOT:
		return f, nil
	}
	return "", &model.ConfigurationError{Key: "format", Value: s, Allowed: []string{"json", "yaml", "dot"}}
}

// Write renders p to w in the given format.
func Write(w io.Writer, p *model.Plan, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, p)
	case FormatYAML:
		return WriteYAML(w, p)
	case FormatDOT:
		return WriteDOT(w, p)
	}
	return fmt.Errorf("unsupported format %q", f)
}

// WriteJSON writes p as indented JSON.
func WriteJSON(w io.Writer, p *model.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// WriteYAML writes p as a YAML document.
func WriteYAML(w io.Writer, p *model.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// WriteDOT writes p as a Graphviz digraph. Scatter groups are drawn as
// clusters; edges are labelled with the consumed outputs.
func WriteDOT(w io.Writer, p *model.Plan) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", p.Workflow)
	sb.WriteString("  rankdir=TB;\n  node [shape=box, style=rounded];\n")

	var groups []string
	members := make(map[string][]model.PlanNode)
	for _, n := range p.Nodes {
		if n.Group == "" {
			fmt.Fprintf(&sb, "  %q [label=%q];\n", n.ID, n.Task)
			continue
		}
		if _, ok := members[n.Group]; !ok {
			groups = append(groups, n.Group)
		}
		members[n.Group] = append(members[n.Group], n)
	}
	for i, g := range groups {
		fmt.Fprintf(&sb, "  subgraph cluster_%d {\n    label=%q;\n    style=dashed;\n", i, members[g][0].Task+" scatter")
		for _, n := range members[g] {
			fmt.Fprintf(&sb, "    %q [label=%q];\n", n.ID, fmt.Sprintf("%s [%d]", n.Task, n.Index))
		}
		sb.WriteString("  }\n")
	}

	for _, e := range p.Edges {
		label := edgeLabel(p, e)
		if label == "" {
			fmt.Fprintf(&sb, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", e.From, e.To, label)
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// edgeLabel lists the outputs of e.From that e.To consumes.
func edgeLabel(p *model.Plan, e model.PlanEdge) string {
	to, ok := p.Node(e.To)
	if !ok {
		return ""
	}
	seen := make(map[string]bool)
	var outs []string
	var walk func(v any)
	walk = func(v any) {
		if inst, out, ok := RefTarget(v); ok {
			if inst == e.From && !seen[out] {
				seen[out] = true
				outs = append(outs, out)
			}
			return
		}
		if items, ok := v.([]any); ok {
			for _, it := range items {
				walk(it)
			}
		}
	}
	for _, k := range sortedInputNames(to.Inputs) {
		walk(to.Inputs[k])
	}
	return strings.Join(outs, ",")
}
