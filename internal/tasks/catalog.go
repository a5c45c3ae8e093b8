package tasks

import (
	"sort"

	"github.com/me/wolf/pkg/flow"
)

var catalog = []*flow.Node{
	SplitIntervals,
	GetSampleNames,
	Mutect2,
	MergeVCFs,
	MergeMutectStats,
	LearnReadOrientationModel,
	GetPileupSummaries,
	GatherPileupSummaries,
	CalculateContamination,
	FilterMutectCalls,
	FilterAlignmentArtifacts,
	Funcotator,
}

// All returns every known task node, sorted by name.
func All() []*flow.Node {
	out := make([]*flow.Node, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the task node with the given name.
func Lookup(name string) (*flow.Node, bool) {
	for _, n := range catalog {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}
