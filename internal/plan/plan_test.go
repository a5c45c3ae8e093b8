package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/me/wolf/internal/mutect2"
	"github.com/me/wolf/internal/refconfig"
	"github.com/me/wolf/pkg/flow"
	"github.com/me/wolf/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleParams() mutect2.Params {
	return mutect2.Params{
		PairName:       "pair_01",
		TumorBAM:       "gs://bucket/tumor.bam",
		TumorBAI:       "gs://bucket/tumor.bai",
		NormalBAM:      "gs://bucket/normal.bam",
		NormalBAI:      "gs://bucket/normal.bai",
		RefBuild:       "hg38",
		SequencingType: "WES",
		ScatterCount:   2,
	}
}

func samplePlan(t *testing.T) *model.Plan {
	t.Helper()
	p, err := Mutect2(testLogger(), refconfig.DefaultTable(), sampleParams())
	if err != nil {
		t.Fatalf("Mutect2: %v", err)
	}
	return p
}

func TestNew_MirrorsGraph(t *testing.T) {
	p := samplePlan(t)

	const n = 2
	if len(p.Nodes) != 3*n+11 {
		t.Errorf("nodes = %d, want %d", len(p.Nodes), 3*n+11)
	}
	if len(p.Edges) != 9*n+9 {
		t.Errorf("edges = %d, want %d", len(p.Edges), 9*n+9)
	}
	if !strings.HasPrefix(p.ID, "plan_") {
		t.Errorf("ID = %q, want plan_ prefix", p.ID)
	}
	if p.Fingerprint == "" {
		t.Error("Fingerprint is empty")
	}
	if p.Workflow != mutect2.WorkflowName || p.Pair != "pair_01" || p.ScatterCount != 2 {
		t.Errorf("meta = %s/%s/%d", p.Workflow, p.Pair, p.ScatterCount)
	}
	if p.Params["pair_name"] != "pair_01" {
		t.Errorf("Params[pair_name] = %v", p.Params["pair_name"])
	}
	for i, node := range p.Nodes {
		if node.Seq != i {
			t.Errorf("node %d has seq %d", i, node.Seq)
		}
		if node.DependsOn == nil {
			t.Errorf("node %s DependsOn is nil", node.ID)
		}
	}
	if len(p.Results) != 10 {
		t.Errorf("results = %d, want 10", len(p.Results))
	}
	for _, name := range ResultNames(p) {
		inst, _, ok := RefTarget(p.Results[name])
		if !ok {
			t.Errorf("result %s = %v, want reference", name, p.Results[name])
			continue
		}
		if _, ok := p.Node(inst); !ok {
			t.Errorf("result %s points at unknown instance %s", name, inst)
		}
	}
}

func TestNew_ScatterInputsAreIndexedRefs(t *testing.T) {
	p := samplePlan(t)
	seen := 0
	for _, node := range p.Nodes {
		if node.Task != "Mutect2" {
			continue
		}
		seen++
		ref, ok := node.Inputs["interval"].(map[string]any)
		if !ok {
			t.Fatalf("interval = %T, want reference object", node.Inputs["interval"])
		}
		if ref["index"] != node.Index {
			t.Errorf("interval index = %v, want %d", ref["index"], node.Index)
		}
		if node.Role != "scatter" || node.Group == "" {
			t.Errorf("Mutect2 role/group = %s/%q", node.Role, node.Group)
		}
	}
	if seen != 2 {
		t.Errorf("Mutect2 nodes = %d, want 2", seen)
	}
}

func TestMutect2_DefaultsRecorded(t *testing.T) {
	params := sampleParams()
	params.RefBuild, params.SequencingType, params.ScatterCount = "", "", 0
	p, err := Mutect2(testLogger(), refconfig.DefaultTable(), params)
	if err != nil {
		t.Fatalf("Mutect2: %v", err)
	}
	if p.RefBuild != "hg38" || p.SequencingType != "WGS" || p.ScatterCount != 10 {
		t.Errorf("meta = %s/%s/%d, want hg38/WGS/10", p.RefBuild, p.SequencingType, p.ScatterCount)
	}
}

func TestMutect2_ErrorPassesThrough(t *testing.T) {
	params := sampleParams()
	params.RefBuild = "hg18"
	_, err := Mutect2(testLogger(), refconfig.DefaultTable(), params)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}

func TestEncode(t *testing.T) {
	b := flow.NewBuilder(testLogger())
	src := &flow.Node{
		Name:    "src",
		Inputs:  []flow.Param{flow.Scalar("n")},
		Outputs: []flow.Param{flow.File("out"), flow.CollectionOf("parts", flow.KindFile).SizedBy("n")},
	}
	outs, err := src.Invoke(b, map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	got := Encode(outs.Get("out"))
	m, ok := got.(map[string]any)
	if !ok || !strings.HasSuffix(m["$ref"].(string), "/out") {
		t.Fatalf("Encode(handle) = %v", got)
	}
	if _, hasIndex := m["index"]; hasIndex {
		t.Error("unindexed handle should not carry an index")
	}

	parts, ok := Encode(outs.Get("parts")).([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("Encode(collection) = %v", Encode(outs.Get("parts")))
	}
	if parts[1].(map[string]any)["index"] != 1 {
		t.Errorf("parts[1] = %v, want index 1", parts[1])
	}

	if Encode(flow.Path("a.vcf")) != "a.vcf" {
		t.Error("Path should encode as a string")
	}
	if Encode(7) != 7 {
		t.Error("scalars pass through")
	}
}

func TestEncode_MatchesHandleJSON(t *testing.T) {
	b := flow.NewBuilder(testLogger())
	src := &flow.Node{Name: "src", Outputs: []flow.Param{flow.File("out")}}
	outs, err := src.Invoke(b, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	h := outs.Get("out")

	direct, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := json.Marshal(Encode(h))
	if err != nil {
		t.Fatal(err)
	}
	if string(direct) != string(encoded) {
		t.Errorf("handle JSON %s != encoded %s", direct, encoded)
	}
}

func TestRefTarget(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantInst string
		wantOut  string
		wantOK   bool
	}{
		{"ref", map[string]any{"$ref": "inst_1/vcf"}, "inst_1", "vcf", true},
		{"indexed", map[string]any{"$ref": "inst_2/parts", "index": 3}, "inst_2", "parts", true},
		{"plain string", "inst_1/vcf", "", "", false},
		{"no slash", map[string]any{"$ref": "inst_1"}, "", "", false},
		{"other map", map[string]any{"path": "x"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, out, ok := RefTarget(tt.in)
			if inst != tt.wantInst || out != tt.wantOut || ok != tt.wantOK {
				t.Errorf("RefTarget() = %q, %q, %v, want %q, %q, %v", inst, out, ok, tt.wantInst, tt.wantOut, tt.wantOK)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "YAML", "dot"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	p := samplePlan(t)
	var buf bytes.Buffer
	if err := Write(&buf, p, FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var back model.Plan
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != p.ID || len(back.Nodes) != len(p.Nodes) || back.Fingerprint != p.Fingerprint {
		t.Errorf("round trip lost data: %s/%d/%s", back.ID, len(back.Nodes), back.Fingerprint)
	}
}

func TestWriteYAML(t *testing.T) {
	p := samplePlan(t)
	var buf bytes.Buffer
	if err := Write(&buf, p, FormatYAML); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["id"] != p.ID {
		t.Errorf("id = %v, want %s", doc["id"], p.ID)
	}
	if nodes, ok := doc["nodes"].([]any); !ok || len(nodes) != len(p.Nodes) {
		t.Errorf("nodes = %v", doc["nodes"])
	}
}

func TestWriteDOT(t *testing.T) {
	p := samplePlan(t)
	var buf bytes.Buffer
	if err := Write(&buf, p, FormatDOT); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `digraph "mutect2_workflow" {`) {
		t.Errorf("unexpected header: %q", strings.SplitN(out, "\n", 2)[0])
	}
	// One cluster per scatter group: Mutect2 plus two pileup scatters.
	if c := strings.Count(out, "subgraph cluster_"); c != 3 {
		t.Errorf("clusters = %d, want 3", c)
	}
	if c := strings.Count(out, " -> "); c != len(p.Edges) {
		t.Errorf("edges = %d, want %d", c, len(p.Edges))
	}
	if !strings.Contains(out, `[label="scatter_vcf"]`) {
		t.Error("missing scatter_vcf edge label")
	}
}
