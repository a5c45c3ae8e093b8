package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/wolf/internal/plan"
	"github.com/me/wolf/internal/store"
	"github.com/me/wolf/pkg/model"
)

// planSource reads stored plans from the local store or a wolf server.
type planSource interface {
	ListPlans(ctx context.Context, opts model.ListOptions) ([]*model.PlanSummary, int, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	DeletePlan(ctx context.Context, id string) error
}

// storeSource adapts a Store to planSource, turning a missing plan into
// a not-found error.
type storeSource struct {
	store.Store
}

func (s storeSource) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	p, err := s.Store.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewNotFoundError("plan", id)
	}
	return p, nil
}

// openStore opens and migrates the SQLite plan store at dbPath, creating
// its directory if needed.
func openStore(ctx context.Context, dbPath string) (*store.SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("no plan store configured (set --db or db_path)")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(dbPath), err)
		}
	}
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

// withSource runs fn against the server when --server is set, and against
// the local plan store otherwise.
func withSource(ctx context.Context, dbPath string, fn func(planSource) error) error {
	if flagServer != "" {
		return fn(NewClient(flagServer, logger))
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	st, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(storeSource{st})
}

func newPlansCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect stored plans",
	}
	cmd.PersistentFlags().StringVar(&db, "db", "", "Plan store path (default from config)")
	cmd.AddCommand(
		newPlansListCmd(&db),
		newPlansShowCmd(&db),
		newPlansDeleteCmd(&db),
	)
	return cmd
}

func newPlansListCmd(db *string) *cobra.Command {
	opts := model.DefaultListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd.Context(), *db, func(src planSource) error {
				opts.Clamp()
				plans, total, err := src.ListPlans(cmd.Context(), opts)
				if err != nil {
					return fmt.Errorf("list plans: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(plans) == 0 {
					fmt.Fprintln(out, "No plans found.")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPAIR\tBUILD\tTYPE\tTASKS\tEDGES\tCREATED")
				for _, p := range plans {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						p.ID, p.Pair, p.RefBuild, p.SequencingType,
						humanize.Comma(int64(p.NodeCount)), humanize.Comma(int64(p.EdgeCount)),
						humanize.Time(p.CreatedAt))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if opts.Offset+len(plans) < total {
					fmt.Fprintf(out, "\n(%d of %s shown)\n", len(plans), humanize.Comma(int64(total)))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum plans to list (max 100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Plans to skip")
	cmd.Flags().StringVar(&opts.Pair, "pair", "", "Only list plans for this pair")
	return cmd
}

func newPlansShowCmd(db *string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Print a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := plan.ParseFormat(format)
			if err != nil {
				return err
			}
			return withSource(cmd.Context(), *db, func(src planSource) error {
				p, err := src.GetPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return plan.Write(cmd.OutOrStdout(), p, f)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml, dot)")
	return cmd
}

func newPlansDeleteCmd(db *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd.Context(), *db, func(src planSource) error {
				if err := src.DeletePlan(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan %s deleted.\n", args[0])
				return nil
			})
		},
	}
}
