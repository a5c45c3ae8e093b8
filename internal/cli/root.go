package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/wolf/internal/config"
	"github.com/me/wolf/internal/logging"
	"github.com/me/wolf/internal/refconfig"
)

var (
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// defaultServer returns the plan server URL from WOLF_SERVER, or "" to
// work against the local plan store.
func defaultServer() string {
	return os.Getenv("WOLF_SERVER")
}

// NewRootCmd creates the root cobra command for the wolf CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wolf",
		Short: "wolf builds somatic variant calling task graphs",
		Long: "wolf resolves reference files and builds the MuTect2 tumor/normal task graph.\n" +
			"Plans are rendered or handed to the execution engine through the plan store; nothing runs here.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				c.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				c.LogFormat = flagLogFormat
			}
			if flagDebug {
				c.LogLevel = "debug"
			}
			cfg = c
			logger = logging.New(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("WOLF_CONFIG"), "Config file (YAML, or WOLF_CONFIG env)")
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "wolf server URL (or WOLF_SERVER env); empty uses the local plan store")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newPlanCmd(),
		newRefsCmd(),
		newTasksCmd(),
		newPlansCmd(),
		newServeCmd(),
	)

	return root
}

// referenceTable returns the configured reference table, or the embedded
// one when no file is configured.
func referenceTable(path string) (refconfig.Table, error) {
	if path == "" {
		return refconfig.DefaultTable(), nil
	}
	t, err := refconfig.LoadTableFile(path)
	if err != nil {
		return nil, fmt.Errorf("load reference table: %w", err)
	}
	logger.Debug("reference table loaded", "path", path, "builds", t.Builds())
	return t, nil
}
