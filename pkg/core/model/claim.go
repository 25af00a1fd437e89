package model

import "time"

// ClaimStatus is the lifecycle state of a ShiftClaim.
type ClaimStatus string

const (
	ClaimStatusClaimed    ClaimStatus = "claimed"
	ClaimStatusInProgress ClaimStatus = "in_progress"
	ClaimStatusCompleted  ClaimStatus = "completed"
	ClaimStatusNoShow     ClaimStatus = "no_show"
	ClaimStatusCancelled  ClaimStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusCompleted || s == ClaimStatusNoShow || s == ClaimStatusCancelled
}

// Active reports whether the claim still holds a spot on its shift.
func (s ClaimStatus) Active() bool {
	return s == ClaimStatusClaimed || s == ClaimStatusInProgress
}

// CancelReason explains how a claim ended up cancelled.
type CancelReason string

const (
	// ReasonWithdrawn: the holder (or a lead) cancelled the claim.
	ReasonWithdrawn CancelReason = "withdrawn"
	// ReasonCapacityExceeded: the claim lost the deterministic merge
	// arbitration for an over-subscribed shift.
	ReasonCapacityExceeded CancelReason = "capacity-exceeded"
	// ReasonTraded: the claim was transferred to another participant by a
	// finalized trade.
	ReasonTraded CancelReason = "traded"
)

// ShiftClaim is one participant's hold on one spot of a shift.
//
// ClaimedAt and CompletedAt are logical timestamps (per-origin Lamport
// counters), not wall-clock times; they exist for deterministic ordering.
// NoShowAt is the wall-clock time reported with a no-show and is used only
// for lazy suspension-window evaluation.
type ShiftClaim struct {
	ID            string
	ShiftID       string
	ParticipantID string
	Status        ClaimStatus
	CancelReason  CancelReason
	ClaimedAt     uint64
	CompletedAt   uint64
	NoShowAt      time.Time
}
