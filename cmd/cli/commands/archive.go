package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/pkg/postgres"
)

// ArchiveCmd creates the archive command
func ArchiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Dock this device's log into the base station archive",
		Long: `Push every locally stored event to the base station's Postgres archive.
Docking is idempotent: events already archived are skipped, so devices can
dock as often as they like.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := app.Cfg.Storage.ArchiveDSN
			if dsn == "" {
				return fmt.Errorf("no archiveDSN configured; set storage.archiveDSN in meshrota.yaml")
			}

			records, err := app.Store.LoadEvents(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to load local events: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("\nNothing to dock; the local log is empty.")
				return nil
			}

			app.Logger.Info("Docking with base station", zap.Int("events", len(records)))

			archive, err := postgres.NewArchive(app.Ctx, dsn)
			if err != nil {
				return err
			}
			defer archive.Close()

			if err := archive.RunMigrations(app.Ctx); err != nil {
				return err
			}

			before, err := archive.Count(app.Ctx)
			if err != nil {
				return err
			}
			if err := archive.AppendEvents(app.Ctx, records); err != nil {
				return fmt.Errorf("failed to archive events: %w", err)
			}
			after, err := archive.Count(app.Ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Docked %d events, %d new to the archive.\n\n", len(records), after-before)

			byKind, err := archive.CountByKind(app.Ctx)
			if err != nil {
				return err
			}
			kinds := make([]string, 0, len(byKind))
			for kind := range byKind {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)

			fmt.Printf("Archive now holds %d events:\n", after)
			for _, kind := range kinds {
				fmt.Printf("  %-16s %d\n", kind, byKind[kind])
			}
			fmt.Println()
			return nil
		},
	}
}
