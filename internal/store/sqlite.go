package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/wolf/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// SavePlan writes a plan with its nodes and edges in one transaction.
func (s *SQLiteStore) SavePlan(ctx context.Context, p *model.Plan) error {
	s.logger.Debug("sql", "op", "insert", "table", "plans", "id", p.ID, "nodes", len(p.Nodes))

	paramsJSON, err := json.Marshal(p.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	resultsJSON, err := json.Marshal(p.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (id, workflow, pair, ref_build, sequencing_type, scatter_count, fingerprint, params, results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Workflow, p.Pair, p.RefBuild, p.SequencingType, p.ScatterCount, p.Fingerprint,
		string(paramsJSON), string(resultsJSON), p.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert plan %s: %w", p.ID, err)
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO plan_nodes (plan_id, id, seq, task, version, image, command, signature, role, grp, idx, inputs, depends_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()
	for _, n := range p.Nodes {
		inputsJSON, err := json.Marshal(n.Inputs)
		if err != nil {
			return fmt.Errorf("marshal inputs of %s: %w", n.ID, err)
		}
		depsJSON, err := json.Marshal(n.DependsOn)
		if err != nil {
			return fmt.Errorf("marshal depends_on of %s: %w", n.ID, err)
		}
		if _, err := nodeStmt.ExecContext(ctx,
			p.ID, n.ID, n.Seq, n.Task, n.Version, n.Image, n.Command, n.Signature,
			n.Role, n.Group, n.Index, string(inputsJSON), string(depsJSON),
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO plan_edges (plan_id, from_id, to_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range p.Edges {
		if _, err := edgeStmt.ExecContext(ctx, p.ID, e.From, e.To); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	return tx.Commit()
}

// GetPlan returns the plan with the given ID, or nil if it does not exist.
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	s.logger.Debug("sql", "op", "select", "table", "plans", "id", id)

	var p model.Plan
	var paramsJSON, resultsJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, pair, ref_build, sequencing_type, scatter_count, fingerprint, params, results, created_at
		 FROM plans WHERE id = ?`, id,
	).Scan(&p.ID, &p.Workflow, &p.Pair, &p.RefBuild, &p.SequencingType, &p.ScatterCount, &p.Fingerprint,
		&paramsJSON, &resultsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &p.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &p.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if p.Nodes, err = s.planNodes(ctx, id); err != nil {
		return nil, err
	}
	if p.Edges, err = s.planEdges(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) planNodes(ctx context.Context, planID string) ([]model.PlanNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, task, version, image, command, signature, role, grp, idx, inputs, depends_on
		 FROM plan_nodes WHERE plan_id = ? ORDER BY seq`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.PlanNode
	for rows.Next() {
		var n model.PlanNode
		var inputsJSON, depsJSON string
		if err := rows.Scan(&n.ID, &n.Seq, &n.Task, &n.Version, &n.Image, &n.Command, &n.Signature,
			&n.Role, &n.Group, &n.Index, &inputsJSON, &depsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputsJSON), &n.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs of %s: %w", n.ID, err)
		}
		if err := json.Unmarshal([]byte(depsJSON), &n.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on of %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *SQLiteStore) planEdges(ctx context.Context, planID string) ([]model.PlanEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.from_id, e.to_id FROM plan_edges e
		 JOIN plan_nodes n ON n.plan_id = e.plan_id AND n.id = e.to_id
		 WHERE e.plan_id = ? ORDER BY n.seq, e.rowid`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.PlanEdge
	for rows.Next() {
		var e model.PlanEdge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListPlans returns plan summaries, newest first, and the total count.
func (s *SQLiteStore) ListPlans(ctx context.Context, opts model.ListOptions) ([]*model.PlanSummary, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "plans", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Pair != "" {
		where = " WHERE p.pair = ?"
		args = append(args, opts.Pair)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.workflow, p.pair, p.ref_build, p.sequencing_type, p.fingerprint, p.created_at,
		        (SELECT COUNT(*) FROM plan_nodes n WHERE n.plan_id = p.id),
		        (SELECT COUNT(*) FROM plan_edges e WHERE e.plan_id = p.id)
		 FROM plans p`+where+` ORDER BY p.created_at DESC, p.id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var plans []*model.PlanSummary
	for rows.Next() {
		var ps model.PlanSummary
		var createdAt string
		if err := rows.Scan(&ps.ID, &ps.Workflow, &ps.Pair, &ps.RefBuild, &ps.SequencingType, &ps.Fingerprint,
			&createdAt, &ps.NodeCount, &ps.EdgeCount); err != nil {
			return nil, 0, err
		}
		ps.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		plans = append(plans, &ps)
	}
	return plans, total, rows.Err()
}

// DeletePlan removes a plan with its nodes and edges.
func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "plans", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("plan", id)
	}
	return nil
}
