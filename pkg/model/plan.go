package model

import "time"

// Plan is a finalized task graph handed to the execution engine. Inputs and
// results hold plain values; references to upstream outputs are objects of
// the form {"$ref": "<instance>/<output>", "index": n}.
type Plan struct {
	ID             string         `json:"id" yaml:"id"`
	Workflow       string         `json:"workflow" yaml:"workflow"`
	Pair           string         `json:"pair" yaml:"pair"`
	RefBuild       string         `json:"ref_build" yaml:"ref_build"`
	SequencingType string         `json:"sequencing_type" yaml:"sequencing_type"`
	ScatterCount   int            `json:"scatter_count" yaml:"scatter_count"`
	Fingerprint    string         `json:"fingerprint" yaml:"fingerprint"`
	Params         map[string]any `json:"params" yaml:"params"`
	Nodes          []PlanNode     `json:"nodes" yaml:"nodes"`
	Edges          []PlanEdge     `json:"edges" yaml:"edges"`
	Results        map[string]any `json:"results" yaml:"results"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
}

// PlanNode is one task instance of a Plan, listed in registration order.
type PlanNode struct {
	ID        string         `json:"id" yaml:"id"`
	Seq       int            `json:"seq" yaml:"seq"`
	Task      string         `json:"task" yaml:"task"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Image     string         `json:"image,omitempty" yaml:"image,omitempty"`
	Command   string         `json:"command,omitempty" yaml:"command,omitempty"`
	Signature string         `json:"signature" yaml:"signature"`
	Role      string         `json:"role" yaml:"role"` // "task", "scatter", or "gather"
	Group     string         `json:"group,omitempty" yaml:"group,omitempty"`
	Index     int            `json:"index" yaml:"index"` // -1 unless Role is "scatter"
	Inputs    map[string]any `json:"inputs" yaml:"inputs"`
	DependsOn []string       `json:"depends_on" yaml:"depends_on"`
}

// PlanEdge is a data-flow edge from a producer to a consumer instance.
type PlanEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// PlanSummary is the list view of a stored Plan.
type PlanSummary struct {
	ID             string    `json:"id"`
	Workflow       string    `json:"workflow"`
	Pair           string    `json:"pair"`
	RefBuild       string    `json:"ref_build"`
	SequencingType string    `json:"sequencing_type"`
	Fingerprint    string    `json:"fingerprint"`
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary returns the list view of p.
func (p *Plan) Summary() PlanSummary {
	return PlanSummary{
		ID:             p.ID,
		Workflow:       p.Workflow,
		Pair:           p.Pair,
		RefBuild:       p.RefBuild,
		SequencingType: p.SequencingType,
		Fingerprint:    p.Fingerprint,
		NodeCount:      len(p.Nodes),
		EdgeCount:      len(p.Edges),
		CreatedAt:      p.CreatedAt,
	}
}

// Node returns the node with the given instance ID.
func (p *Plan) Node(id string) (*PlanNode, bool) {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i], true
		}
	}
	return nil, false
}
