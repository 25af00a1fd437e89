package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/cmd/cli/commands"
	"github.com/emberfield/meshrota/internal/config"
	"github.com/emberfield/meshrota/internal/metrics"
	"github.com/emberfield/meshrota/pkg/core/catalog"
	"github.com/emberfield/meshrota/pkg/core/engine"
	"github.com/emberfield/meshrota/pkg/mesh"
	"github.com/emberfield/meshrota/pkg/sqlite"
	"github.com/emberfield/meshrota/pkg/utils/logging"
)

// Catalog window folded on every start: enough past to score recent
// completions, enough future to claim ahead. Templates expand to the same
// occurrence ids on every device inside this window.
const (
	catalogLookback = 7 * 24 * time.Hour
	catalogHorizon  = 30 * 24 * time.Hour
)

var (
	cfgPath string
	app     *commands.AppContext
)

func main() {
	app = &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:   "meshrota",
		Short: "Meshrota - claim, trade and track volunteer shifts over the camp mesh",
		Long: `A CLI for the camp's volunteer shift rota. Claims, check-ins, trades and
standings are recorded as events in a local log and gossiped to the other
devices over the radio mesh; every device folds the same events into the
same rota, no matter what order they arrive in.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.FlushOutbox()
			if app.Logger != nil {
				app.Logger.Sync()
			}
			if app.Store != nil {
				app.Store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Path to meshrota.yaml (default: current directory, then home)")

	// Add all commands
	rootCmd.AddCommand(commands.ShiftsCmd(app))
	rootCmd.AddCommand(commands.ClaimCmd(app))
	rootCmd.AddCommand(commands.CheckInCmd(app))
	rootCmd.AddCommand(commands.CompleteCmd(app))
	rootCmd.AddCommand(commands.NoShowCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.MineCmd(app))
	rootCmd.AddCommand(commands.TradeCmd(app))
	rootCmd.AddCommand(commands.StandingCmd(app))
	rootCmd.AddCommand(commands.LeaderboardCmd(app))
	rootCmd.AddCommand(commands.LogCmd(app))
	rootCmd.AddCommand(commands.SyncCmd(app))
	rootCmd.AddCommand(commands.ArchiveCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads config and catalog, opens the event store, and folds the
// log into a ready engine.
func initApp(cmd *cobra.Command) error {
	var err error
	app.Ctx = context.Background()

	// Load configuration
	if cfgPath != "" {
		app.Cfg, err = config.LoadFromPath(cfgPath)
	} else {
		app.Cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger. The sync daemon is the only long-running command;
	// it logs to the console at Info, one-shots keep stdout clean for
	// command output.
	if cmd.Name() == "sync" {
		app.Logger, err = logging.InitDaemonLogger(app.Cfg.Device.DataDir, "sync")
	} else {
		app.Logger, err = logging.InitLogger(app.Cfg.Device.DataDir, "cli")
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting meshrota",
		zap.String("participant", app.Cfg.Device.ParticipantID),
		zap.String("command", cmd.Name()))

	// Load the shared catalog
	now := time.Now()
	window := catalog.Window{From: now.Add(-catalogLookback), Until: now.Add(catalogHorizon)}
	shifts, err := catalog.LoadShifts(app.Cfg.ShiftsPath(), window)
	if err != nil {
		return fmt.Errorf("failed to load shift catalog: %w", err)
	}
	roster, err := catalog.LoadRoster(app.Cfg.RosterPath())
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	app.Logger.Debug("Catalog loaded",
		zap.Int("shifts", len(shifts)), zap.Int("participants", len(roster)))

	// Open the local event store
	app.Store, err = sqlite.Open(app.Cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}

	// Instruments are always collected; only the sync daemon serves them
	app.Registry = prometheus.NewRegistry()
	app.Metrics = metrics.New(app.Registry)

	// Fold the persisted log into a ready engine
	app.Engine, err = engine.New(app.Ctx, engine.Options{
		SelfID: app.Cfg.Device.ParticipantID,
		Shifts: shifts,
		Roster: roster,
		Policy: engine.Policy{
			LeadApprovalRequired: app.Cfg.LeadApprovalRequired(),
			TradeTTL:             app.Cfg.TradeTTL(),
		},
		Store:   app.Store,
		Logger:  app.Logger,
		Metrics: app.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	// Spool directory shared with the radio gateway
	app.Spool, err = mesh.NewSpoolAdapter(app.Cfg.SpoolPath(), app.Logger)
	if err != nil {
		return fmt.Errorf("failed to prepare mesh spool: %w", err)
	}

	// Locally authored events reach the spool through FlushOutbox; the
	// sync daemon detaches this and broadcasts through its gossiper.
	app.SubID, app.Notes = app.Engine.Subscribe()

	return nil
}
