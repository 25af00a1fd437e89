package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/pkg/core/engine"
	"github.com/emberfield/meshrota/pkg/core/model"
)

// TradeCmd creates the trade command and its subcommands
func TradeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Propose and settle shift trades",
	}

	cmd.AddCommand(tradeProposeCmd(app))
	cmd.AddCommand(tradeApproveCmd(app))
	cmd.AddCommand(tradeRejectCmd(app))
	cmd.AddCommand(tradeCancelCmd(app))
	cmd.AddCommand(tradeListCmd(app))

	return cmd
}

func tradeProposeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose <claim_id> <receiver_id>",
		Short: "Offer one of your claims to another participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			claimID, receiverID := args[0], args[1]
			message, _ := cmd.Flags().GetString("message")
			app.Logger.Debug("trade propose command",
				zap.String("claim_id", claimID),
				zap.String("receiver_id", receiverID))

			trade, err := app.Engine.ProposeTrade(app.Ctx, claimID, receiverID, message)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Trade proposed!\n\n")
			fmt.Printf("Trade ID: %s\n", trade.ID)
			fmt.Printf("To:       %s\n", receiverID)
			if trade.RequiresLead {
				fmt.Printf("Needs:    receiver approval, then a lead\n")
			} else {
				fmt.Printf("Needs:    receiver approval\n")
			}
			fmt.Printf("Expires:  %s\n\n", trade.ExpiresAt.Format(time.RFC822))
			return nil
		},
	}

	cmd.Flags().String("message", "", "Note for the receiver")

	return cmd
}

func tradeApproveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <trade_id>",
		Short: "Approve a trade in whatever role you hold on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID := args[0]

			role, err := app.Engine.ApprovalRoleFor(tradeID)
			if err != nil {
				return err
			}
			app.Logger.Debug("trade approve command",
				zap.String("trade_id", tradeID),
				zap.String("role", string(role)))

			trade, err := app.Engine.ApproveTrade(app.Ctx, tradeID, role)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Approved as %s.\n\n", role)
			printTradeProgress(trade)
			return nil
		},
	}
}

func tradeRejectCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <trade_id>",
		Short: "Reject a trade in whatever role you hold on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID := args[0]
			reason, _ := cmd.Flags().GetString("reason")

			role, err := app.Engine.ApprovalRoleFor(tradeID)
			if err != nil {
				return err
			}
			app.Logger.Debug("trade reject command",
				zap.String("trade_id", tradeID),
				zap.String("role", string(role)))

			if _, err := app.Engine.RejectTrade(app.Ctx, tradeID, role, reason); err != nil {
				return err
			}

			fmt.Printf("\n✓ Trade rejected.\n\n")
			return nil
		},
	}

	cmd.Flags().String("reason", "", "Why the trade is off")

	return cmd
}

func tradeCancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <trade_id>",
		Short: "Withdraw a trade you proposed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID := args[0]
			app.Logger.Debug("trade cancel command", zap.String("trade_id", tradeID))

			if _, err := app.Engine.CancelTrade(app.Ctx, tradeID); err != nil {
				return err
			}

			fmt.Printf("\n✓ Trade withdrawn.\n\n")
			return nil
		},
	}
}

func tradeListCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show trades waiting on you and trades you proposed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			self := app.Engine.Self().ID

			if all {
				trades := app.Engine.AllTrades()
				fmt.Printf("\nAll trades (%d):\n\n", len(trades))
				for _, v := range trades {
					printTradeLine(v)
				}
				fmt.Println()
				return nil
			}

			waiting := app.Engine.TradesNeedingAction(self)
			mine := app.Engine.MyPendingTrades(self)

			if len(waiting) == 0 && len(mine) == 0 {
				fmt.Println("\nNo trades need your attention.")
				return nil
			}

			if len(waiting) > 0 {
				fmt.Printf("\nWaiting on you (%d):\n\n", len(waiting))
				for _, v := range waiting {
					printTradeLine(v)
				}
			}
			if len(mine) > 0 {
				fmt.Printf("\nProposed by you (%d):\n\n", len(mine))
				for _, v := range mine {
					printTradeLine(v)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include settled and expired trades")

	return cmd
}

func printTradeLine(v engine.TradeView) {
	fmt.Printf("  %s  %s -> %s  %s\n",
		v.Trade.ID, v.Trade.RequesterID, v.Trade.ReceiverID, shiftLine(v.Shift))
	fmt.Printf("     status %s", v.EffectiveStatus)
	if v.EffectiveStatus != v.Trade.Status {
		fmt.Printf(" (stored %s)", v.Trade.Status)
	}
	if v.Trade.Message != "" {
		fmt.Printf("  %q", v.Trade.Message)
	}
	if v.Trade.RejectReason != "" {
		fmt.Printf("  reason: %s", v.Trade.RejectReason)
	}
	fmt.Println()
}

func printTradeProgress(trade model.TradeRequest) {
	switch trade.Status {
	case model.TradeStatusApproved:
		if trade.NewClaimID != "" {
			fmt.Printf("Fully approved! Claim %s now belongs to %s.\n\n", trade.NewClaimID, trade.ReceiverID)
		} else {
			fmt.Printf("Fully approved. The transfer lands with the next fold.\n\n")
		}
	case model.TradeStatusAwaitingLead:
		fmt.Printf("Receiver is in; a lead still has to sign off.\n\n")
	default:
		fmt.Printf("Still pending further approvals.\n\n")
	}
}
