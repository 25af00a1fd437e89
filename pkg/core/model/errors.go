package model

import "fmt"

// ClaimErrorKind identifies why a claim intent was refused.
type ClaimErrorKind string

const (
	ErrShiftNotFound        ClaimErrorKind = "shift_not_found"
	ErrShiftFull            ClaimErrorKind = "shift_full"
	ErrAlreadyClaimedBySelf ClaimErrorKind = "already_claimed_by_self"
	ErrClaimNotFound        ClaimErrorKind = "claim_not_found"
	ErrClaimNotPermitted    ClaimErrorKind = "claim_not_permitted"
)

// ClaimError is returned when a local claim intent cannot be accepted.
// Only local intents fail this way; events that arrive over the mesh are
// reconciled by the fold instead.
type ClaimError struct {
	Kind          ClaimErrorKind
	ShiftID       string
	ClaimID       string
	ParticipantID string
	Detail        string
}

func (e *ClaimError) Error() string {
	switch e.Kind {
	case ErrShiftNotFound:
		return fmt.Sprintf("shift %s not found", e.ShiftID)
	case ErrShiftFull:
		return fmt.Sprintf("shift %s is at capacity", e.ShiftID)
	case ErrAlreadyClaimedBySelf:
		return fmt.Sprintf("participant %s already holds an active claim on shift %s", e.ParticipantID, e.ShiftID)
	case ErrClaimNotFound:
		return fmt.Sprintf("claim %s not found", e.ClaimID)
	case ErrClaimNotPermitted:
		if e.Detail != "" {
			return fmt.Sprintf("not permitted to modify claim %s: %s", e.ClaimID, e.Detail)
		}
		return fmt.Sprintf("not permitted to modify claim %s", e.ClaimID)
	default:
		return fmt.Sprintf("claim refused for shift %s", e.ShiftID)
	}
}

// TradeErrorKind identifies why a trade intent was refused.
type TradeErrorKind string

const (
	ErrTradeNotFound           TradeErrorKind = "trade_not_found"
	ErrTradeExpired            TradeErrorKind = "trade_expired"
	ErrTradeUnauthorized       TradeErrorKind = "trade_unauthorized"
	ErrShiftAlreadyTransferred TradeErrorKind = "shift_already_transferred"
)

// TradeError is returned when a local trade intent cannot be accepted.
type TradeError struct {
	Kind    TradeErrorKind
	TradeID string
	Detail  string
}

func (e *TradeError) Error() string {
	switch e.Kind {
	case ErrTradeNotFound:
		return fmt.Sprintf("trade %s not found", e.TradeID)
	case ErrTradeExpired:
		return fmt.Sprintf("trade %s has expired", e.TradeID)
	case ErrTradeUnauthorized:
		msg := "not permitted"
		if e.TradeID != "" {
			msg = fmt.Sprintf("not permitted to act on trade %s", e.TradeID)
		}
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg
	case ErrShiftAlreadyTransferred:
		return fmt.Sprintf("trade %s lost to a concurrent transfer of the same claim", e.TradeID)
	default:
		return fmt.Sprintf("trade %s refused", e.TradeID)
	}
}

// TransitionError is returned when an intent names a state change the
// claim or trade lifecycle does not allow, such as completing a cancelled
// claim or approving a rejected trade.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}
