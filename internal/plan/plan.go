// Package plan converts finalized task graphs into the model.Plan hand-off
// document and renders it for the execution engine or for inspection.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/me/wolf/pkg/flow"
	"github.com/me/wolf/pkg/model"
)

// Meta describes the run a graph was built for.
type Meta struct {
	Workflow       string
	Pair           string
	RefBuild       string
	SequencingType string
	ScatterCount   int
	Params         any // arguments the graph was built from; encoded as JSON
}

// NewID returns a fresh plan identity.
func NewID() string {
	return "plan_" + uuid.New().String()
}

// New converts g and its named results into a Plan with a fresh ID.
func New(g *flow.Graph, results map[string]flow.Ref, meta Meta) (*model.Plan, error) {
	params, err := toMap(meta.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	p := &model.Plan{
		ID:             NewID(),
		Workflow:       meta.Workflow,
		Pair:           meta.Pair,
		RefBuild:       meta.RefBuild,
		SequencingType: meta.SequencingType,
		ScatterCount:   meta.ScatterCount,
		Fingerprint:    g.Fingerprint(),
		Params:         params,
		Results:        make(map[string]any, len(results)),
		CreatedAt:      time.Now().UTC(),
	}

	for _, inst := range g.Instances() {
		inputs := make(map[string]any, len(inst.Inputs))
		for k, v := range inst.Inputs {
			inputs[k] = Encode(v)
		}
		deps := g.DependsOn(inst.ID)
		if deps == nil {
			deps = []string{}
		}
		p.Nodes = append(p.Nodes, model.PlanNode{
			ID:        inst.ID,
			Seq:       inst.Seq,
			Task:      inst.Node.Name,
			Version:   inst.Node.Version,
			Image:     inst.Node.Image,
			Command:   inst.Node.Command,
			Signature: inst.Node.Signature(),
			Role:      string(inst.Role),
			Group:     inst.Group,
			Index:     inst.Index,
			Inputs:    inputs,
			DependsOn: deps,
		})
	}
	for _, e := range g.Edges() {
		p.Edges = append(p.Edges, model.PlanEdge{From: e.From, To: e.To})
	}
	for name, ref := range results {
		p.Results[name] = Encode(ref)
	}
	return p, nil
}

// Encode converts a bound input value into plain JSON-compatible data.
// Handles become {"$ref": "<instance>/<output>"} objects, with an "index"
// key for elements of a sized collection output.
func Encode(v any) any {
	switch x := v.(type) {
	case flow.Handle:
		m := map[string]any{"$ref": x.Instance() + "/" + x.Output()}
		if x.Index() >= 0 {
			m["index"] = x.Index()
		}
		return m
	case flow.Collection:
		return encodeSlice(x.Items())
	case flow.Path:
		return string(x)
	case []any:
		return encodeSlice(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Encode(e)
		}
		return out
	default:
		return v
	}
}

func encodeSlice(items []any) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = Encode(it)
	}
	return out
}

// RefTarget reports the producing instance and output named by an encoded
// reference, as found in Plan inputs and results.
func RefTarget(v any) (instance, output string, ok bool) {
	m, isMap := v.(map[string]any)
	if !isMap {
		return "", "", false
	}
	s, isStr := m["$ref"].(string)
	if !isStr {
		return "", "", false
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// ResultNames returns the result names of p in sorted order.
func ResultNames(p *model.Plan) []string {
	return sortedInputNames(p.Results)
}

func sortedInputNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func toMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
