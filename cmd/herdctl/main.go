// Command herdctl imports herd records and prints the analytics views over
// them: cohort classification, growth profiles, trends, monthly rollups,
// dry-off candidates and exportable herd reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"herdcore/internal/config"
	"herdcore/internal/logging"
	"herdcore/pkg/domain"
)

var version = "dev"

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	asOf       string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "herdctl",
		Short: "Herd performance analytics",
		Long: `herdctl imports subject, measurement and lactation records into a record
store and evaluates them: milk cohort classification, calf growth against the
target curve, yield trends, monthly rollups and dry-off candidates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default: $HERDCORE_CONFIG)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (text, json)")
	root.PersistentFlags().StringVar(&g.asOf, "as-of", "", "evaluation date (default: today)")

	root.AddCommand(importCmd(g))
	root.AddCommand(classifyCmd(g))
	root.AddCommand(growthCmd(g))
	root.AddCommand(trendsCmd(g))
	root.AddCommand(rollupCmd(g))
	root.AddCommand(candidatesCmd(g))
	root.AddCommand(reportCmd(g))
	return root
}

func (g *globals) init(cmd *cobra.Command) error {
	path := g.configPath
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		if !logging.ValidLevel(g.logLevel) {
			return fmt.Errorf("invalid log level: %s", g.logLevel)
		}
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	g.cfg = cfg
	g.logger = logger
	return nil
}

// evaluationDate parses --as-of; the zero time means the wall clock.
func (g *globals) evaluationDate() (time.Time, error) {
	if g.asOf == "" {
		return time.Time{}, nil
	}
	day, err := domain.ParseDay(g.asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of: %w", err)
	}
	return day, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "herdctl:", err)
		os.Exit(1)
	}
}
