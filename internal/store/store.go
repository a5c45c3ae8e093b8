package store

import (
	"context"

	"github.com/me/wolf/pkg/model"
)

// Store persists finalized plans for the execution engine to pick up.
// It is write-once per plan: nothing here is consulted to skip or reuse work.
type Store interface {
	SavePlan(ctx context.Context, p *model.Plan) error
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	ListPlans(ctx context.Context, opts model.ListOptions) ([]*model.PlanSummary, int, error)
	DeletePlan(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
