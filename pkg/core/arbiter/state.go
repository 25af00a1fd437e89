// Package arbiter folds claim-lifecycle events into claim state, resolving
// over-subscription deterministically so every device lands on the same
// winners.
package arbiter

import "github.com/emberfield/meshrota/pkg/core/model"

// State is the claim side of the fold. It is rebuilt from scratch on every
// apply, so it carries no bookkeeping beyond the claims themselves.
type State struct {
	Claims map[string]*model.ShiftClaim
}

func NewState() *State {
	return &State{Claims: make(map[string]*model.ShiftClaim)}
}

// Claim returns the claim with the given id, or nil.
func (s *State) Claim(id string) *model.ShiftClaim {
	return s.Claims[id]
}

// ActiveCount returns how many claims currently hold a spot on the shift.
func (s *State) ActiveCount(shiftID string) int {
	count := 0
	for _, claim := range s.Claims {
		if claim.ShiftID == shiftID && claim.Status.Active() {
			count++
		}
	}
	return count
}

// ActiveClaimBy returns the participant's active claim on the shift, or
// nil if they do not hold one.
func (s *State) ActiveClaimBy(participantID, shiftID string) *model.ShiftClaim {
	for _, claim := range s.Claims {
		if claim.ShiftID == shiftID && claim.ParticipantID == participantID && claim.Status.Active() {
			return claim
		}
	}
	return nil
}
