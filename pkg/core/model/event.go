package model

import "time"

// Kind tags an event with its payload type. Every consumer switches
// exhaustively on Kind; unknown kinds are skipped at the codec boundary.
type Kind string

const (
	KindClaim          Kind = "claim"
	KindCheckIn        Kind = "check_in"
	KindComplete       Kind = "complete"
	KindNoShow         Kind = "no_show"
	KindCancelClaim    Kind = "cancel_claim"
	KindProposeTrade   Kind = "propose_trade"
	KindApproveTrade   Kind = "approve_trade"
	KindRejectTrade    Kind = "reject_trade"
	KindCancelTrade    Kind = "cancel_trade"
	KindTradeFinalized Kind = "trade_finalized"
)

// Event is the only thing devices exchange. Events are created once on the
// authoring device, appended to the local log, broadcast, and never edited
// or deleted; all derived state is a pure fold over the event set.
type Event struct {
	ID      string
	Origin  string // participant whose device authored the event
	TS      uint64 // per-origin Lamport counter
	Kind    Kind
	Payload Payload
}

// Before orders events canonically: (TS, Origin, ID) ascending. The eventId
// tiebreak makes the order total, so every device sorts an identical event
// set identically.
func (e Event) Before(other Event) bool {
	if e.TS != other.TS {
		return e.TS < other.TS
	}
	if e.Origin != other.Origin {
		return e.Origin < other.Origin
	}
	return e.ID < other.ID
}

// Payload is implemented by exactly one struct per Kind.
type Payload interface {
	EventKind() Kind
}

// ClaimPayload reserves one spot on a shift for the event's origin.
type ClaimPayload struct {
	ClaimID string `json:"claimId"`
	ShiftID string `json:"shiftId"`
}

func (ClaimPayload) EventKind() Kind { return KindClaim }

// CheckInPayload moves a claim from claimed to in_progress at shift start.
type CheckInPayload struct {
	ClaimID string `json:"claimId"`
}

func (CheckInPayload) EventKind() Kind { return KindCheckIn }

// CompletePayload marks a claim completed, awarding the shift's points.
type CompletePayload struct {
	ClaimID string `json:"claimId"`
}

func (CompletePayload) EventKind() Kind { return KindComplete }

// NoShowPayload marks a claim as a no-show. OccurredAt is the reporting
// lead's wall clock, used only for lazy suspension-window evaluation.
type NoShowPayload struct {
	ClaimID    string    `json:"claimId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (NoShowPayload) EventKind() Kind { return KindNoShow }

// CancelClaimPayload withdraws a claim.
type CancelClaimPayload struct {
	ClaimID string `json:"claimId"`
}

func (CancelClaimPayload) EventKind() Kind { return KindCancelClaim }

// ProposeTradePayload opens a trade of the source claim to the receiver.
// The requester's approval is implicit in proposing. CreatedAt/ExpiresAt
// are the proposing device's wall clock; expiry is evaluated lazily by
// each reader. RequiresLead snapshots the proposing camp's approval policy
// into the event so every device folds the trade identically even if their
// local configs disagree.
type ProposeTradePayload struct {
	TradeID       string    `json:"tradeId"`
	SourceClaimID string    `json:"sourceClaimId"`
	ReceiverID    string    `json:"receiverId"`
	Message       string    `json:"message,omitempty"`
	RequiresLead  bool      `json:"requiresLeadApproval"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (ProposeTradePayload) EventKind() Kind { return KindProposeTrade }

// ApproveTradePayload records one party's consent.
type ApproveTradePayload struct {
	TradeID string       `json:"tradeId"`
	Role    ApprovalRole `json:"role"`
}

func (ApproveTradePayload) EventKind() Kind { return KindApproveTrade }

// RejectTradePayload terminates a trade without transfer.
type RejectTradePayload struct {
	TradeID string       `json:"tradeId"`
	Role    ApprovalRole `json:"role"`
	Reason  string       `json:"reason,omitempty"`
}

func (RejectTradePayload) EventKind() Kind { return KindRejectTrade }

// CancelTradePayload withdraws a trade; only the requester may cancel.
type CancelTradePayload struct {
	TradeID string `json:"tradeId"`
}

func (CancelTradePayload) EventKind() Kind { return KindCancelTrade }

// TradeFinalizedPayload applies a fully-approved trade: the source claim is
// cancelled with ReasonTraded and a new claim with NewClaimID is created
// for the receiver. Carrying NewClaimID in the event makes every device
// agree on the transferred claim's identity. Concurrent finalizations are
// arbitrated by canonical event order during the fold.
type TradeFinalizedPayload struct {
	TradeID       string `json:"tradeId"`
	SourceClaimID string `json:"sourceClaimId"`
	NewClaimID    string `json:"newClaimId"`
	ShiftID       string `json:"shiftId"`
	ReceiverID    string `json:"receiverId"`
}

func (TradeFinalizedPayload) EventKind() Kind { return KindTradeFinalized }
