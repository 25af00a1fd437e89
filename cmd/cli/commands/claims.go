package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// ClaimCmd creates the claim command
func ClaimCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <shift_id>",
		Short: "Claim an open spot on a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shiftID := args[0]
			app.Logger.Debug("claim command", zap.String("shift_id", shiftID))

			claim, err := app.Engine.SubmitClaim(app.Ctx, shiftID)
			if err != nil {
				return err
			}

			shift, _ := app.Engine.Shift(shiftID)
			fmt.Printf("\n✓ Spot claimed!\n\n")
			fmt.Printf("Claim ID: %s\n", claim.ID)
			fmt.Printf("Shift:    %s\n", shiftLine(shift))
			fmt.Printf("Worth:    %d points on completion\n\n", shift.PointsValue)

			warnIfSuspended(app, app.Engine.Self().ID)
			return nil
		},
	}
}

// CheckInCmd creates the checkin command
func CheckInCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <claim_id>",
		Short: "Check in at the start of your shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID := args[0]
			app.Logger.Debug("checkin command", zap.String("claim_id", claimID))

			claim, err := app.Engine.CheckIn(app.Ctx, claimID)
			if err != nil {
				return err
			}

			shift, _ := app.Engine.Shift(claim.ShiftID)
			fmt.Printf("\n✓ Checked in to %s. Have a good shift!\n\n", shift.Name)
			return nil
		},
	}
}

// CompleteCmd creates the complete command
func CompleteCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <claim_id>",
		Short: "Mark a shift done and bank its points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID := args[0]
			app.Logger.Debug("complete command", zap.String("claim_id", claimID))

			claim, err := app.Engine.Complete(app.Ctx, claimID)
			if err != nil {
				return err
			}

			shift, _ := app.Engine.Shift(claim.ShiftID)
			fmt.Printf("\n✓ Shift complete! %d points earned.\n\n", shift.PointsValue)

			if view, ok := app.Engine.StandingFor(claim.ParticipantID); ok {
				fmt.Printf("%s now has %d points over %d completed shifts (%s tier).\n\n",
					claim.ParticipantID,
					view.Record.PointsEarned,
					view.Record.ShiftsCompleted,
					view.Record.CurrentTier,
				)
			}
			return nil
		},
	}
}

// NoShowCmd creates the noshow command
func NoShowCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "noshow <claim_id>",
		Short: "Report that a claimed shift was not worked (leads only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID := args[0]
			app.Logger.Debug("noshow command", zap.String("claim_id", claimID))

			claim, err := app.Engine.ReportNoShow(app.Ctx, claimID)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ No-show recorded for %s.\n\n", claim.ParticipantID)

			schedule := app.Engine.SuspensionSchedule(claim.ParticipantID)
			if len(schedule) > 0 {
				last := schedule[len(schedule)-1]
				if last.Indefinite {
					fmt.Printf("⚠️  %s is now suspended indefinitely pending lead review.\n\n", claim.ParticipantID)
				} else if end, ok := last.Until(); ok {
					fmt.Printf("⚠️  %s is suspended until %s.\n\n", claim.ParticipantID, end.Format("Mon Jan 02 15:04"))
				}
			}
			return nil
		},
	}
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <claim_id>",
		Short: "Release a claimed spot back to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID := args[0]
			app.Logger.Debug("cancel command", zap.String("claim_id", claimID))

			claim, err := app.Engine.CancelClaim(app.Ctx, claimID)
			if err != nil {
				return err
			}

			shift, _ := app.Engine.Shift(claim.ShiftID)
			fmt.Printf("\n✓ Claim released. %s has an open spot again.\n\n", shift.Name)
			return nil
		},
	}
}

// MineCmd creates the mine command
func MineCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your claims and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			self := app.Engine.Self().ID
			views := app.Engine.ClaimsFor(self)
			if len(views) == 0 {
				fmt.Println("\nYou have no claims yet. Run 'shifts' to find one.")
				return nil
			}

			fmt.Printf("\nYour claims (%d):\n\n", len(views))
			for _, v := range views {
				marker := statusMarker(v.Claim.Status)
				fmt.Printf("  %s %-12s %s\n", marker, v.Claim.Status, shiftLine(v.Shift))
				fmt.Printf("     claim %s", v.Claim.ID)
				if v.Claim.Status == model.ClaimStatusCancelled {
					fmt.Printf(" (%s)", v.Claim.CancelReason)
				}
				fmt.Println()
			}
			fmt.Println()
			return nil
		},
	}
}

func statusMarker(status model.ClaimStatus) string {
	switch status {
	case model.ClaimStatusCompleted:
		return "✓"
	case model.ClaimStatusNoShow, model.ClaimStatusCancelled:
		return "✗"
	default:
		return "•"
	}
}
