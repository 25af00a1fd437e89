package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// LogCmd creates the log command
func LogCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Dump the event log in canonical order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := app.Engine.Events()
			if len(events) == 0 {
				fmt.Println("\nThe log is empty.")
				return nil
			}

			fmt.Printf("\nEvent log (%d events, canonical order):\n\n", len(events))
			fmt.Printf("  %4s  %-10s  %-16s  %s\n", "TS", "ORIGIN", "KIND", "EVENT ID")
			fmt.Printf("  %s\n", strings.Repeat("-", 72))
			for _, ev := range events {
				fmt.Printf("  %4d  %-10s  %-16s  %s\n", ev.TS, ev.Origin, ev.Kind, ev.ID)
			}

			recons := app.Engine.Reconciliations()
			if len(recons) > 0 {
				fmt.Printf("\nMerge reconciliations (%d):\n\n", len(recons))
				for _, r := range recons {
					fmt.Printf("  %s  %s: %s\n", r.EventID, r.Kind, r.Detail)
				}
			}
			fmt.Println()

			digest := app.Engine.Digest()
			if len(digest) > 0 {
				origins := make([]string, 0, len(digest))
				for origin := range digest {
					origins = append(origins, origin)
				}
				sort.Strings(origins)

				fmt.Printf("Per-origin watermarks:\n")
				for _, origin := range origins {
					stat := digest[origin]
					fmt.Printf("  %-10s  max ts %d, %d events\n", origin, stat.MaxTS, stat.Count)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.AddCommand(logReconsCmd(app))

	return cmd
}

func logReconsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recons",
		Short: "Show only the fold's merge decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recons := app.Engine.Reconciliations()
			if len(recons) == 0 {
				fmt.Println("\nNo reconciliations; every event applied as authored.")
				return nil
			}

			fmt.Printf("\nMerge reconciliations (%d):\n\n", len(recons))
			for _, r := range recons {
				fmt.Printf("  %-24s %s\n", r.Kind, r.Detail)
				fmt.Printf("    event %s\n", r.EventID)
			}
			fmt.Println()
			return nil
		},
	}
}
