package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ShiftsCmd creates the shifts command
func ShiftsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "List shifts that still have open spots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			app.Logger.Debug("shifts command", zap.Bool("all", all))

			if all {
				shifts := app.Engine.AllShifts()
				fmt.Printf("\nShift catalog (%d shifts):\n\n", len(shifts))
				for _, s := range shifts {
					fmt.Printf("  %s\n", shiftLine(s))
				}
				fmt.Println()
				return nil
			}

			available := app.Engine.AvailableShifts()
			if len(available) == 0 {
				fmt.Println("\nNo open shifts right now.")
				return nil
			}

			idWidth := 8
			for _, av := range available {
				if len(av.Shift.ID) > idWidth {
					idWidth = len(av.Shift.ID)
				}
			}

			fmt.Printf("\nOpen shifts (%d):\n\n", len(available))
			fmt.Printf("  %-*s  %-22s  %-24s  %5s  %6s\n", idWidth, "ID", "WHEN", "SHIFT", "OPEN", "POINTS")
			fmt.Printf("  %s\n", strings.Repeat("-", idWidth+65))
			for _, av := range available {
				name := av.Shift.Name
				if av.Shift.Urgent {
					name += " ⚠️"
				}
				when := fmt.Sprintf("%s - %s",
					av.Shift.Start.Format("Mon Jan 02 15:04"),
					av.Shift.End.Format("15:04"))
				fmt.Printf("  %-*s  %-22s  %-24s  %2d/%-2d  %6d\n",
					idWidth, av.Shift.ID, when, name,
					av.Remaining, av.Shift.Capacity, av.Shift.PointsValue)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include full and past shifts")

	return cmd
}
