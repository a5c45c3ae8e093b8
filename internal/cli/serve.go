package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/me/wolf/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		db        string
		tablePath string
		noStore   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plan API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if db != "" {
				cfg.DBPath = db
			}
			if tablePath != "" {
				cfg.RefsPath = tablePath
			}

			table, err := referenceTable(cfg.RefsPath)
			if err != nil {
				return err
			}
			opts := []server.Option{server.WithReferenceTable(table)}

			if !noStore {
				st, err := openStore(cmd.Context(), cfg.DBPath)
				if err != nil {
					return err
				}
				defer st.Close()
				logger.Info("database ready", "path", cfg.DBPath)
				opts = append(opts, server.WithStore(st))
			}

			srv := server.New(cfg, logger, opts...)
			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("server starting", "addr", cfg.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (default from config)")
	cmd.Flags().StringVar(&db, "db", "", "Plan store path (default from config)")
	cmd.Flags().StringVar(&tablePath, "refs", "", "Reference table YAML (default from config, embedded table)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Build plans without storing them")
	return cmd
}
