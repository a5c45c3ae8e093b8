package flow

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testBuilder returns a Builder with predictable identities: inst_1, grp_1, ...
func testBuilder(t *testing.T) *Builder {
	t.Helper()
	counters := map[string]int{}
	return NewBuilder(testLogger(), WithIDGenerator(func(prefix string) string {
		counters[prefix]++
		return fmt.Sprintf("%s_%d", prefix, counters[prefix])
	}))
}

var (
	splitNode = &Node{
		Name:    "Split",
		Version: "1",
		Inputs: []Param{
			File("interval_list"),
			Scalar("count"),
		},
		Outputs: []Param{
			CollectionOf("parts", KindFile).SizedBy("count"),
		},
	}
	callNode = &Node{
		Name:    "Call",
		Version: "1",
		Inputs: []Param{
			File("bam"),
			CollectionOf("interval", KindFile),
			Scalar("mem").WithDefault("4"),
		},
		Outputs: []Param{
			File("vcf"),
			File("stats"),
		},
	}
	mergeNode = &Node{
		Name:    "Merge",
		Version: "1",
		Inputs: []Param{
			CollectionOf("all", KindCollection),
		},
		Outputs: []Param{
			File("merged"),
		},
	}
)

func mustInvoke(t *testing.T, b *Builder, n *Node, inputs map[string]any) Outputs {
	t.Helper()
	out, err := n.Invoke(b, inputs)
	if err != nil {
		t.Fatalf("Invoke %s: %v", n.Name, err)
	}
	return out
}

func mustFinalize(t *testing.T, b *Builder) *Graph {
	t.Helper()
	g, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return g
}
