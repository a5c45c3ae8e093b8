package flow

import (
	"errors"
	"testing"

	"github.com/me/wolf/pkg/model"
)

func TestScatter_OneInstancePerElement(t *testing.T) {
	b := testBuilder(t)
	split := mustInvoke(t, b, splitNode, map[string]any{"interval_list": "x", "count": 4})

	out, err := Scatter(b, callNode, map[string]any{
		"bam":      "t.bam",
		"interval": split.Get("parts"),
	}, "interval")
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	g := mustFinalize(t, b)
	if g.Len() != 5 {
		t.Fatalf("Len() = %d, want 5 (1 split + 4 scattered)", g.Len())
	}

	vcfs, ok := out.Get("vcf").(Collection)
	if !ok {
		t.Fatalf("vcf = %T, want Collection", out.Get("vcf"))
	}
	if vcfs.Len() != 4 {
		t.Fatalf("vcf.Len() = %d, want 4", vcfs.Len())
	}

	members := g.Group(vcfs.Group())
	if len(members) != 4 {
		t.Fatalf("group has %d members, want 4", len(members))
	}
	for i := 0; i < 4; i++ {
		h := vcfs.At(i).(Handle)
		inst, ok := g.Instance(h.Instance())
		if !ok {
			t.Fatalf("vcf[%d] owner %s not in graph", i, h.Instance())
		}
		if inst.Index != i || inst.Role != RoleScatter {
			t.Errorf("vcf[%d] owner index=%d role=%s, want %d scatter", i, inst.Index, inst.Role, i)
		}
		if members[i].ID != inst.ID {
			t.Errorf("group member %d = %s, want %s", i, members[i].ID, inst.ID)
		}
		// The i-th instance received the i-th interval.
		bound := inst.Inputs["interval"].(Handle)
		if bound.Index() != i {
			t.Errorf("instance %d bound interval index %d", i, bound.Index())
		}
	}

	stats := out.Get("stats").(Collection)
	if stats.Group() != vcfs.Group() {
		t.Errorf("stats group %q != vcf group %q", stats.Group(), vcfs.Group())
	}
}

func TestScatter_LiteralCollection(t *testing.T) {
	b := testBuilder(t)
	out, err := Scatter(b, callNode, map[string]any{
		"bam":      "t.bam",
		"interval": []string{"chr1", "chr2"},
	}, "interval")
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	g := mustFinalize(t, b)
	if len(g.Edges()) != 0 {
		t.Errorf("Edges() = %v, want none for literal inputs", g.Edges())
	}
	if out.Get("vcf").(Collection).Len() != 2 {
		t.Errorf("vcf length = %d, want 2", out.Get("vcf").(Collection).Len())
	}
}

func TestScatter_Errors(t *testing.T) {
	b := testBuilder(t)
	count := mustInvoke(t, b, &Node{Name: "Count", Outputs: []Param{Scalar("n")}}, nil)
	unsized := mustInvoke(t, b, splitNode, map[string]any{"interval_list": "x", "count": count.Get("n")})
	before := b.Len()

	tests := []struct {
		name   string
		inputs map[string]any
		on     []string
		check  func(t *testing.T, err error)
	}{
		{
			"non-collection input",
			map[string]any{"bam": "t.bam", "interval": []string{"a"}},
			[]string{"bam"},
			func(t *testing.T, err error) {
				var e *model.ScatterTypeError
				if !errors.As(err, &e) || e.Input != "bam" {
					t.Errorf("err = %v, want ScatterTypeError on bam", err)
				}
			},
		},
		{
			"empty collection",
			map[string]any{"bam": "t.bam", "interval": []string{}},
			[]string{"interval"},
			func(t *testing.T, err error) {
				var e *model.EmptyScatterError
				if !errors.As(err, &e) {
					t.Errorf("err = %v, want EmptyScatterError", err)
				}
			},
		},
		{
			"unsized handle",
			map[string]any{"bam": "t.bam", "interval": unsized.Get("parts")},
			[]string{"interval"},
			func(t *testing.T, err error) {
				var e *model.ScatterTypeError
				if !errors.As(err, &e) {
					t.Errorf("err = %v, want ScatterTypeError", err)
				}
			},
		},
		{
			"missing scatter value",
			map[string]any{"bam": "t.bam"},
			[]string{"interval"},
			func(t *testing.T, err error) {
				var e *model.MissingInputError
				if !errors.As(err, &e) || e.Input != "interval" {
					t.Errorf("err = %v, want MissingInputError on interval", err)
				}
			},
		},
		{
			"no scatter input",
			map[string]any{"bam": "t.bam", "interval": []string{"a"}},
			nil,
			func(t *testing.T, err error) {
				var e *model.ScatterTypeError
				if !errors.As(err, &e) {
					t.Errorf("err = %v, want ScatterTypeError", err)
				}
			},
		},
		{
			"bad element kind",
			map[string]any{"bam": "t.bam", "interval": []any{"a", []string{"nested"}}},
			[]string{"interval"},
			func(t *testing.T, err error) {
				var e *model.InputTypeError
				if !errors.As(err, &e) || e.Input != "interval" {
					t.Errorf("err = %v, want InputTypeError on interval", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scatter(b, callNode, tt.inputs, tt.on...)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
			if b.Len() != before {
				t.Errorf("Len() = %d after failed scatter, want %d", b.Len(), before)
			}
		})
	}
}

func TestScatter_ForeignHandleRegistersNothing(t *testing.T) {
	other := NewBuilder(testLogger())
	foreign := mustInvoke(t, other, callNode, map[string]any{"bam": "o.bam", "interval": []string{"a"}}).Get("vcf")

	b := testBuilder(t)
	mustInvoke(t, b, splitNode, map[string]any{"interval_list": "x", "count": 1})
	_, err := Scatter(b, callNode, map[string]any{
		"bam":      "t.bam",
		"interval": NewCollection(Path("a"), Path("b"), foreign),
	}, "interval")
	if err == nil {
		t.Fatal("expected error for a handle from another builder")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d after failed scatter, want 1", b.Len())
	}
	g := mustFinalize(t, b)
	if g.Len() != 1 || len(g.Group("grp_1")) != 0 {
		t.Errorf("graph holds %d instances, want only the split", g.Len())
	}
}

func TestScatter_NilElementIsNotDefaulted(t *testing.T) {
	tag := &Node{
		Name:    "Tag",
		Inputs:  []Param{CollectionOf("x", KindScalar).WithDefault("dflt")},
		Outputs: []Param{Scalar("tagged")},
	}
	b := testBuilder(t)
	_, err := Scatter(b, tag, map[string]any{"x": NewCollection("a", nil, "c")}, "x")
	var typeErr *model.InputTypeError
	if !errors.As(err, &typeErr) || typeErr.Input != "x" {
		t.Fatalf("err = %v, want InputTypeError on x", err)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestScatter_DotProduct(t *testing.T) {
	pair := &Node{
		Name: "Pair",
		Inputs: []Param{
			CollectionOf("left", KindScalar),
			CollectionOf("right", KindScalar),
		},
		Outputs: []Param{Scalar("joined")},
	}

	b := testBuilder(t)
	out, err := Scatter(b, pair, map[string]any{
		"left":  []string{"a", "b"},
		"right": []string{"x", "y"},
	}, "left", "right")
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	g := mustFinalize(t, b)
	joined := out.Get("joined").(Collection)
	for i, want := range [][2]string{{"a", "x"}, {"b", "y"}} {
		inst, _ := g.Instance(joined.At(i).(Handle).Instance())
		if inst.Inputs["left"] != want[0] || inst.Inputs["right"] != want[1] {
			t.Errorf("element %d bound %v/%v, want %v", i, inst.Inputs["left"], inst.Inputs["right"], want)
		}
	}

	_, err = Scatter(testBuilder(t), pair, map[string]any{
		"left":  []string{"a", "b"},
		"right": []string{"x"},
	}, "left", "right")
	var e *model.ScatterTypeError
	if !errors.As(err, &e) {
		t.Errorf("length mismatch err = %v, want ScatterTypeError", err)
	}
}

func TestScatterGather_Topology(t *testing.T) {
	b := testBuilder(t)
	calls, err := Scatter(b, callNode, map[string]any{
		"bam":      "t.bam",
		"interval": []string{"i1", "i2", "i3"},
	}, "interval")
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	merged, err := Gather(b, mergeNode, map[string]any{"all": calls.Get("vcf")}, "all")
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	g := mustFinalize(t, b)
	if g.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", g.Len())
	}

	gatherID := merged.Get("merged").(Handle).Instance()
	gatherInst, _ := g.Instance(gatherID)
	if gatherInst.Role != RoleGather {
		t.Errorf("gather role = %s, want %s", gatherInst.Role, RoleGather)
	}

	deps := g.DependsOn(gatherID)
	if len(deps) != 3 {
		t.Fatalf("gather deps = %v, want 3", deps)
	}
	edges := g.Edges()
	if len(edges) != 3 {
		t.Fatalf("Edges() = %v, want exactly 3", edges)
	}
	for _, e := range edges {
		if e.To != gatherID {
			t.Errorf("edge %v does not end at gather instance", e)
		}
	}
	for _, inst := range g.Group(calls.Get("vcf").(Collection).Group()) {
		if len(g.DependsOn(inst.ID)) != 0 {
			t.Errorf("scatter instance %s has deps %v, want none", inst.ID, g.DependsOn(inst.ID))
		}
	}

	// The gather input is a collection holding the scatter collection.
	nested := gatherInst.Inputs["all"].(Collection)
	if nested.Len() != 1 || nested.At(0).(Collection).Len() != 3 {
		t.Errorf("gather input = %v, want one nested collection of 3", nested)
	}
}

func TestGather_MultipleProducers(t *testing.T) {
	b := testBuilder(t)
	a, _ := Scatter(b, callNode, map[string]any{"bam": "a.bam", "interval": []string{"i1", "i2"}}, "interval")
	c, _ := Scatter(b, callNode, map[string]any{"bam": "c.bam", "interval": []string{"i1", "i2"}}, "interval")

	merged, err := Gather(b, mergeNode, map[string]any{"all": []Ref{a.Get("vcf"), c.Get("vcf")}}, "all")
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	g := mustFinalize(t, b)
	if deps := g.DependsOn(merged.Get("merged").(Handle).Instance()); len(deps) != 4 {
		t.Errorf("deps = %v, want 4", deps)
	}
}

func TestGather_Errors(t *testing.T) {
	b := testBuilder(t)

	_, err := Gather(b, mergeNode, map[string]any{"all": []Ref{}}, "all")
	var empty *model.EmptyScatterError
	if !errors.As(err, &empty) {
		t.Errorf("empty gather err = %v, want EmptyScatterError", err)
	}

	_, err = Gather(b, callNode, map[string]any{"bam": "t.bam", "interval": []string{"a"}}, "bam")
	var typeErr *model.InputTypeError
	if !errors.As(err, &typeErr) {
		t.Errorf("non-collection gather err = %v, want InputTypeError", err)
	}

	_, err = Gather(b, mergeNode, map[string]any{}, "all")
	var missing *model.MissingInputError
	if !errors.As(err, &missing) {
		t.Errorf("missing gather err = %v, want MissingInputError", err)
	}
}
