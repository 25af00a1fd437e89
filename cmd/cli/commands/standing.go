package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// StandingCmd creates the standing command
func StandingCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "standing [participant_id]",
		Short: "Show a participant's points, reliability and suspensions (defaults to you)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participantID := app.Engine.Self().ID
			if len(args) > 0 {
				participantID = args[0]
			}
			app.Logger.Debug("standing command", zap.String("participant_id", participantID))

			view, ok := app.Engine.StandingFor(participantID)
			if !ok {
				return fmt.Errorf("no standing for %s; are they on the roster?", participantID)
			}

			rec := view.Record
			fmt.Printf("\nStanding for %s\n\n", participantID)
			fmt.Printf("Points earned:    %d\n", rec.PointsEarned)
			fmt.Printf("Shifts completed: %d\n", rec.ShiftsCompleted)
			fmt.Printf("No-shows:         %d\n", rec.ShiftsNoShow)
			fmt.Printf("Reliability:      %.0f%%\n", rec.ReliabilityScore*100)
			fmt.Printf("Tier:             %s\n\n", rec.CurrentTier)

			if view.Suspension != nil {
				if view.Suspension.Indefinite {
					fmt.Printf("⚠️  Suspended indefinitely pending lead review (%s).\n\n", view.Suspension.Reason)
				} else if end, ok := view.Suspension.Until(); ok {
					fmt.Printf("⚠️  Suspended until %s (%s).\n\n", end.Format(time.RFC822), view.Suspension.Reason)
				}
			}

			schedule := app.Engine.SuspensionSchedule(participantID)
			if len(schedule) > 0 {
				fmt.Printf("Suspension history:\n")
				for i, s := range schedule {
					window := "indefinite"
					if !s.Indefinite {
						window = s.Duration.String()
					}
					fmt.Printf("  %d. %s  %s  (%s)\n", i+1, s.AppliedAt.Format("Jan 02 15:04"), window, s.Reason)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// LeaderboardCmd creates the leaderboard command
func LeaderboardCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the camp contribution board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := app.Engine.Leaderboard()
			if len(entries) == 0 {
				fmt.Println("\nNo contributions folded yet.")
				return nil
			}

			nameWidth := 12
			for _, e := range entries {
				if len(e.DisplayName) > nameWidth {
					nameWidth = len(e.DisplayName)
				}
			}
			nameWidth += len(" (you)")

			fmt.Printf("\nCamp leaderboard:\n\n")
			fmt.Printf("  %4s  %-*s  %6s  %6s  %5s  %-8s\n", "RANK", nameWidth, "WHO", "POINTS", "DONE", "REL", "TIER")
			fmt.Printf("  %s\n", strings.Repeat("-", nameWidth+40))
			for _, e := range entries {
				who := e.DisplayName
				if e.IsMe {
					who += " (you)"
				}
				fmt.Printf("  %4d  %-*s  %6d  %6d  %4.0f%%  %-8s\n",
					e.Rank, nameWidth, who, e.PointsEarned, e.ShiftsCompleted,
					e.ReliabilityScore*100, e.Tier)
			}
			fmt.Println()
			return nil
		},
	}
}
