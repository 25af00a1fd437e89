package trade

import (
	"fmt"
	"time"

	"github.com/emberfield/meshrota/pkg/core/arbiter"
	"github.com/emberfield/meshrota/pkg/core/model"
)

// CheckPropose validates a local trade proposal before an event is minted.
// Remote proposals skip this and are reconciled by Apply.
func CheckPropose(claims *arbiter.State, roster map[string]model.Participant, requesterID, sourceClaimID, receiverID string) error {
	claim := claims.Claim(sourceClaimID)
	if claim == nil || claim.ParticipantID != requesterID {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, Detail: fmt.Sprintf("you do not hold claim %s", sourceClaimID)}
	}
	if !claim.Status.Active() {
		return &model.TransitionError{Entity: "claim", ID: claim.ID, From: string(claim.Status), To: "traded"}
	}
	if receiverID == requesterID {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, Detail: "cannot trade a shift with yourself"}
	}
	if _, ok := roster[receiverID]; !ok {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, Detail: fmt.Sprintf("receiver %s is not in the roster", receiverID)}
	}
	return nil
}

// CheckApprove validates a local approval, including lazy expiry against
// this device's wall clock. Remote approvals are never expiry-checked, so
// devices whose clocks disagree still converge on the folded facts.
func CheckApprove(st *State, roster map[string]model.Participant, tradeID, actorID string, role model.ApprovalRole, now time.Time) error {
	t := st.Trade(tradeID)
	if t == nil {
		return &model.TradeError{Kind: model.ErrTradeNotFound, TradeID: tradeID}
	}
	if err := checkOpen(t, now, "approved"); err != nil {
		return err
	}
	if bad := checkRole(t, roster, actorID, role); bad != "" {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, TradeID: tradeID, Detail: bad}
	}
	return nil
}

// CheckReject validates a local rejection.
func CheckReject(st *State, roster map[string]model.Participant, tradeID, actorID string, role model.ApprovalRole, now time.Time) error {
	t := st.Trade(tradeID)
	if t == nil {
		return &model.TradeError{Kind: model.ErrTradeNotFound, TradeID: tradeID}
	}
	if err := checkOpen(t, now, "rejected"); err != nil {
		return err
	}
	if bad := checkRole(t, roster, actorID, role); bad != "" {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, TradeID: tradeID, Detail: bad}
	}
	return nil
}

// CheckCancel validates a local cancellation; only the requester may
// withdraw a trade.
func CheckCancel(st *State, tradeID, actorID string, now time.Time) error {
	t := st.Trade(tradeID)
	if t == nil {
		return &model.TradeError{Kind: model.ErrTradeNotFound, TradeID: tradeID}
	}
	if err := checkOpen(t, now, "cancelled"); err != nil {
		return err
	}
	if actorID != t.RequesterID {
		return &model.TradeError{Kind: model.ErrTradeUnauthorized, TradeID: tradeID, Detail: "only the requester may cancel"}
	}
	return nil
}

func checkOpen(t *model.TradeRequest, now time.Time, to string) error {
	if t.Status.Terminal() {
		if t.RejectReason == model.RejectReasonTransferred {
			return &model.TradeError{Kind: model.ErrShiftAlreadyTransferred, TradeID: t.ID}
		}
		return &model.TransitionError{Entity: "trade", ID: t.ID, From: string(t.Status), To: to}
	}
	if t.EffectiveStatus(now) == model.TradeStatusExpired {
		return &model.TradeError{Kind: model.ErrTradeExpired, TradeID: t.ID}
	}
	return nil
}
