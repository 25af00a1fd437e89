// Package model defines the domain types shared by the meshrota core:
// participants, shifts, claims, trades, standings, and the event tagged
// union every device folds into derived state.
package model

// Role distinguishes camp leadership from regular participants.
type Role string

const (
	RoleLead        Role = "lead"
	RoleParticipant Role = "participant"
)

func (r Role) IsValid() bool {
	return r == RoleLead || r == RoleParticipant
}

// Participant is a camp member as listed in the roster reference data.
type Participant struct {
	ID          string
	DisplayName string
	Role        Role
}

// IsLead reports whether the participant may act for camp leadership
// (lead trade approvals, no-show marking).
func (p Participant) IsLead() bool {
	return p.Role == RoleLead
}
