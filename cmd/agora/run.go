package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agora-sim/agora/config"
	"github.com/agora-sim/agora/logging"
	"github.com/agora-sim/agora/runtime"
	"github.com/agora-sim/agora/scheduler"
)

var (
	runPolicy    string
	runRoles     string
	runSession   string
	runResume    bool
	runMaxTicks  int
	runStrategy  string
	runSeed      string
	runDrainWait time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a session",
	Long: `Run a policy-governed session with the actors of a roster file.

Backend selection, timeouts and retry limits come from the environment
(AGORA_* variables, optionally via a .env file). Without a configured
backend the session runs on the deterministic rule-based pipeline.

Examples:
  agora run --policy policy.yaml --roles roster.yaml --max-ticks 40
  agora run --policy policy.yaml --roles roster.yaml --session 20260829-1 --resume`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPolicy, "policy", "policy.yaml", "Admission policy file")
	runCmd.Flags().StringVar(&runRoles, "roles", "roster.yaml", "Actor roster file")
	runCmd.Flags().StringVar(&runSession, "session", "", "Session id (default: a fresh one)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume an existing session")
	runCmd.Flags().IntVar(&runMaxTicks, "max-ticks", 60, "Scheduling ticks to run (0 runs until interrupted)")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Scheduling strategy: recency or template (default: template when the roster has a turn order)")
	runCmd.Flags().StringVar(&runSeed, "seed", "", "Opening statement for the first seed speaker")
	runCmd.Flags().DurationVar(&runDrainWait, "drain-wait", 30*time.Second, "How long shutdown waits for maintenance to drain")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	settings := config.Load()
	if verbose {
		settings.LogLevel = "debug"
	}

	roster, err := config.LoadRoster(runRoles)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	strategy, err := pickStrategy(runStrategy, roster)
	if err != nil {
		return err
	}

	var openings map[string]string
	if runSeed != "" && len(roster.SeedSpeakers) > 0 {
		openings = map[string]string{roster.SeedSpeakers[0]: runSeed}
	}

	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(settings.LogLevel)
	lc.Format = "text"
	lc.Component = "agora"
	logger := logging.NewLogger(lc)

	rt, err := runtime.Bootstrap(runtime.Config{
		DataDir:    dataDir,
		SessionID:  runSession,
		Resume:     runResume,
		PolicyPath: runPolicy,
		Roster:     roster,
		Settings:   settings,
		Openings:   openings,
		Strategy:   strategy,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := rt.Run(ctx, runMaxTicks)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("interrupted, shutting down")
		runErr = nil
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), runDrainWait)
	defer cancel()
	if err := rt.Shutdown(drainCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d events committed\n",
		rt.SessionID(), rt.Store().Len())
	return nil
}

func pickStrategy(name string, roster *config.Roster) (scheduler.Strategy, error) {
	switch name {
	case "":
		return nil, nil // Bootstrap derives the default from the roster.
	case "recency":
		return scheduler.NewRecency(), nil
	case "template":
		if len(roster.TurnOrder) == 0 {
			return nil, fmt.Errorf("strategy template requires a turn_order in the roster")
		}
		return scheduler.NewTemplateOrder(roster.TurnOrder), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
