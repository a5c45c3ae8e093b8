package plan

import (
	"log/slog"

	"github.com/me/wolf/internal/mutect2"
	"github.com/me/wolf/internal/refconfig"
	"github.com/me/wolf/pkg/flow"
	"github.com/me/wolf/pkg/model"
)

// Mutect2 builds the tumor/normal workflow for p and converts it to a Plan.
func Mutect2(logger *slog.Logger, table refconfig.Table, p mutect2.Params, opts ...flow.Option) (*model.Plan, error) {
	g, results, err := mutect2.Plan(logger, table, p, opts...)
	if err != nil {
		return nil, err
	}
	p = p.WithDefaults()
	return New(g, results, Meta{
		Workflow:       mutect2.WorkflowName,
		Pair:           p.PairName,
		RefBuild:       p.RefBuild,
		SequencingType: p.SequencingType,
		ScatterCount:   p.ScatterCount,
		Params:         p,
	})
}
