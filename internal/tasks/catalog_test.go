package tasks

import (
	"testing"

	"github.com/me/wolf/pkg/flow"
)

func TestCatalog_UniqueNamesAndSignatures(t *testing.T) {
	names := make(map[string]bool)
	sigs := make(map[string]string)
	for _, n := range All() {
		if names[n.Name] {
			t.Errorf("duplicate task name %s", n.Name)
		}
		names[n.Name] = true

		sig := n.Signature()
		if other, ok := sigs[sig]; ok {
			t.Errorf("%s and %s share signature %s", n.Name, other, sig)
		}
		sigs[sig] = n.Name

		if len(n.Outputs) == 0 {
			t.Errorf("%s declares no outputs", n.Name)
		}
	}
	if len(names) != 12 {
		t.Errorf("catalog has %d tasks, want 12", len(names))
	}
}

func TestCatalog_SchemaShape(t *testing.T) {
	for _, n := range All() {
		seen := make(map[string]bool)
		for _, p := range n.Inputs {
			if seen[p.Name] {
				t.Errorf("%s: duplicate input %s", n.Name, p.Name)
			}
			seen[p.Name] = true
			if p.SizeFrom != "" {
				t.Errorf("%s: input %s sets SizeFrom", n.Name, p.Name)
			}
		}
		for _, p := range n.Outputs {
			if p.SizeFrom == "" {
				continue
			}
			src, ok := n.Input(p.SizeFrom)
			if !ok || src.Kind != flow.KindScalar {
				t.Errorf("%s: output %s sized by %q, which is not a scalar input", n.Name, p.Name, p.SizeFrom)
			}
		}
	}
}

func TestScatteredInputsAreCollections(t *testing.T) {
	for _, n := range []*flow.Node{Mutect2, GetPileupSummaries} {
		p, ok := n.Input("interval")
		if !ok {
			t.Fatalf("%s has no interval input", n.Name)
		}
		if p.Kind != flow.KindCollection || p.Elem != flow.KindFile {
			t.Errorf("%s.interval = %v of %v, want collection of file", n.Name, p.Kind, p.Elem)
		}
	}
}

func TestLookup(t *testing.T) {
	n, ok := Lookup("Mutect2")
	if !ok || n != Mutect2 {
		t.Errorf("Lookup(Mutect2) = %v, %v", n, ok)
	}
	if _, ok := Lookup("HaplotypeCaller"); ok {
		t.Error("Lookup(HaplotypeCaller) should fail")
	}
}
