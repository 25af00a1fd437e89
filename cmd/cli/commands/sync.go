package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emberfield/meshrota/pkg/mesh"
)

// SyncCmd creates the sync command
func SyncCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the mesh sync daemon until interrupted",
		Long: `Run the sync daemon: consume frames from the radio gateway spool,
rebroadcast locally authored events, and exchange digests with peers so
partitioned devices converge. Runs until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The gossiper owns broadcasting from here on.
			app.DetachOutbox()

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			gossiper := mesh.NewGossiper(mesh.GossiperOptions{
				Engine:         app.Engine,
				Adapter:        app.Spool,
				Logger:         app.Logger,
				Metrics:        app.Metrics,
				DigestInterval: app.Cfg.DigestInterval(),
			})

			app.Logger.Info("Sync daemon starting",
				zap.String("device", app.Engine.Self().ID),
				zap.String("spool", app.Cfg.SpoolPath()),
				zap.Duration("digest_interval", app.Cfg.DigestInterval()),
			)
			fmt.Printf("Syncing as %s. Ctrl-C to stop.\n", app.Engine.Self().ID)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return app.Spool.Run(ctx) })
			g.Go(func() error { return gossiper.Run(ctx) })

			if addr := app.Cfg.Metrics.ListenAddr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
				server := &http.Server{Addr: addr, Handler: mux}

				app.Logger.Info("Metrics endpoint listening", zap.String("addr", addr))
				g.Go(func() error {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server failed: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Shutdown(shutdownCtx)
				})
			}

			err := g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			app.Logger.Info("Sync daemon stopped")
			fmt.Println("\nSync stopped.")
			return nil
		},
	}
}
