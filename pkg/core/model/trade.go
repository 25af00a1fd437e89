package model

import "time"

// TradeStatus is the lifecycle state of a TradeRequest.
type TradeStatus string

const (
	TradeStatusPending      TradeStatus = "pending"
	TradeStatusAwaitingLead TradeStatus = "awaiting_lead_approval"
	TradeStatusApproved     TradeStatus = "approved"
	TradeStatusRejected     TradeStatus = "rejected"
	TradeStatusCancelled    TradeStatus = "cancelled"
	TradeStatusExpired      TradeStatus = "expired"
)

// Terminal reports whether the status can never change again.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeStatusApproved, TradeStatusRejected, TradeStatusCancelled, TradeStatusExpired:
		return true
	}
	return false
}

// Reject reasons written by the fold when it closes a trade that no party
// rejected explicitly.
const (
	RejectReasonTransferred  = "shift-already-transferred"
	RejectReasonSourceClosed = "source-claim-closed"
)

// ApprovalRole identifies whose consent an approve/reject event carries.
type ApprovalRole string

const (
	ApprovalRequester ApprovalRole = "requester"
	ApprovalReceiver  ApprovalRole = "receiver"
	ApprovalLead      ApprovalRole = "lead"
)

func (r ApprovalRole) IsValid() bool {
	return r == ApprovalRequester || r == ApprovalReceiver || r == ApprovalLead
}

// TradeRequest tracks a proposed transfer of a claim from its current
// holder (the requester) to another participant (the receiver). It
// finalizes only when requester and receiver have approved, plus a lead
// when policy requires one.
//
// Expiry is never stored: readers overlay TradeStatusExpired when the
// stored status is still pending/awaiting and ExpiresAt has passed their
// own clock.
type TradeRequest struct {
	ID                string
	SourceClaimID     string
	RequesterID       string
	ReceiverID        string
	Message           string
	Status            TradeStatus
	RequiresLead      bool
	RequesterApproved bool
	ReceiverApproved  bool
	LeadApproved      bool
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ProposedAt        uint64

	// Set by the winning trade_finalized event once the transfer applied.
	FinalizedBy string
	NewClaimID  string

	// Populated when the trade terminates without transferring.
	RejectReason string
}

// EffectiveStatus applies the lazy expiry overlay for a reader whose wall
// clock says now.
func (t TradeRequest) EffectiveStatus(now time.Time) TradeStatus {
	if (t.Status == TradeStatusPending || t.Status == TradeStatusAwaitingLead) && now.After(t.ExpiresAt) {
		return TradeStatusExpired
	}
	return t.Status
}

// Finalized reports whether the transfer has been applied.
func (t TradeRequest) Finalized() bool {
	return t.FinalizedBy != ""
}
