package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/wolf/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func samplePlan(id string, created time.Time) *model.Plan {
	return &model.Plan{
		ID:             id,
		Workflow:       "mutect2_workflow",
		Pair:           "pair_01",
		RefBuild:       "hg38",
		SequencingType: "WES",
		ScatterCount:   2,
		Fingerprint:    "f00d",
		Params:         map[string]any{"pair_name": "pair_01", "scatter_count": float64(2)},
		Nodes: []model.PlanNode{
			{
				ID: "inst_a", Seq: 0, Task: "SplitIntervals", Signature: "s1", Role: "task", Index: -1,
				Inputs:    map[string]any{"scatter_count": float64(2)},
				DependsOn: []string{},
			},
			{
				ID: "inst_b", Seq: 1, Task: "Mutect2", Signature: "s2", Role: "scatter", Group: "grp_1", Index: 0,
				Inputs:    map[string]any{"interval": map[string]any{"$ref": "inst_a/subintervals", "index": float64(0)}},
				DependsOn: []string{"inst_a"},
			},
			{
				ID: "inst_c", Seq: 2, Task: "Mutect2", Signature: "s2", Role: "scatter", Group: "grp_1", Index: 1,
				Inputs:    map[string]any{"interval": map[string]any{"$ref": "inst_a/subintervals", "index": float64(1)}},
				DependsOn: []string{"inst_a"},
			},
		},
		Edges: []model.PlanEdge{
			{From: "inst_a", To: "inst_b"},
			{From: "inst_a", To: "inst_c"},
		},
		Results:   map[string]any{"vcf": map[string]any{"$ref": "inst_c/scatter_vcf"}},
		CreatedAt: created,
	}
}

func TestSavePlan_GetPlan(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := samplePlan("plan_1", now)

	if err := st.SavePlan(ctx, p); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	got, err := st.GetPlan(ctx, "plan_1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got == nil {
		t.Fatal("GetPlan returned nil")
	}
	if got.Fingerprint != "f00d" || got.ScatterCount != 2 || got.SequencingType != "WES" {
		t.Errorf("plan = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
	if len(got.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(got.Nodes))
	}
	for i, n := range got.Nodes {
		if n.Seq != i {
			t.Errorf("node %d seq = %d", i, n.Seq)
		}
	}
	b := got.Nodes[1]
	if b.Group != "grp_1" || b.Index != 0 || b.Role != "scatter" {
		t.Errorf("node b = %+v", b)
	}
	ref, ok := b.Inputs["interval"].(map[string]any)
	if !ok || ref["$ref"] != "inst_a/subintervals" {
		t.Errorf("node b interval = %v", b.Inputs["interval"])
	}
	if len(b.DependsOn) != 1 || b.DependsOn[0] != "inst_a" {
		t.Errorf("node b depends_on = %v", b.DependsOn)
	}
	if len(got.Edges) != 2 || got.Edges[0].To != "inst_b" || got.Edges[1].To != "inst_c" {
		t.Errorf("edges = %v", got.Edges)
	}
	if _, ok := got.Results["vcf"]; !ok {
		t.Errorf("results = %v", got.Results)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetPlan(context.Background(), "plan_missing")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got != nil {
		t.Errorf("GetPlan = %+v, want nil", got)
	}
}

func TestSavePlan_DuplicateID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := samplePlan("plan_dup", time.Now().UTC())
	if err := st.SavePlan(ctx, p); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := st.SavePlan(ctx, p); err == nil {
		t.Fatal("expected error on duplicate plan id")
	}
	// The failed save must not leave extra rows behind.
	got, err := st.GetPlan(ctx, "plan_dup")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if len(got.Nodes) != 3 || len(got.Edges) != 2 {
		t.Errorf("nodes/edges = %d/%d, want 3/2", len(got.Nodes), len(got.Edges))
	}
}

func TestListPlans(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p := samplePlan(fmt.Sprintf("plan_%d", i), base.Add(time.Duration(i)*time.Hour))
		if i == 4 {
			p.Pair = "pair_02"
		}
		if err := st.SavePlan(ctx, p); err != nil {
			t.Fatalf("SavePlan: %v", err)
		}
	}

	plans, total, err := st.ListPlans(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(plans) != 2 || plans[0].ID != "plan_4" || plans[1].ID != "plan_3" {
		t.Fatalf("plans = %v, want newest first", plans)
	}
	if plans[0].NodeCount != 3 || plans[0].EdgeCount != 2 {
		t.Errorf("counts = %d/%d, want 3/2", plans[0].NodeCount, plans[0].EdgeCount)
	}

	plans, total, err = st.ListPlans(ctx, model.ListOptions{Limit: 10, Offset: 3})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if total != 5 || len(plans) != 2 {
		t.Errorf("offset page = %d plans of %d, want 2 of 5", len(plans), total)
	}

	plans, total, err = st.ListPlans(ctx, model.ListOptions{Pair: "pair_02"})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if total != 1 || len(plans) != 1 || plans[0].ID != "plan_4" {
		t.Errorf("pair filter = %v (total %d)", plans, total)
	}
}

func TestDeletePlan(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.SavePlan(ctx, samplePlan("plan_del", time.Now().UTC())); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := st.DeletePlan(ctx, "plan_del"); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}
	got, err := st.GetPlan(ctx, "plan_del")
	if err != nil || got != nil {
		t.Errorf("GetPlan after delete = %v, %v", got, err)
	}

	var n int
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_nodes WHERE plan_id = ?`, "plan_del").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("plan_nodes left behind: %d", n)
	}

	err = st.DeletePlan(ctx, "plan_del")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
		t.Errorf("second delete err = %v, want NOT_FOUND", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}
