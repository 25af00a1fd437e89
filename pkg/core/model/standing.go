package model

import "time"

// Tier buckets a participant's completed-shift count.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// StandingRecord is the derived contribution summary for one participant.
// It is recomputed from the folded claim set and never mutated directly.
type StandingRecord struct {
	ParticipantID    string
	PointsEarned     int
	ShiftsCompleted  int
	ShiftsNoShow     int
	ReliabilityScore float64
	CurrentTier      Tier
}

// Suspension is a penalty window derived lazily from no-show history.
// Duration 0 with Indefinite set means the window never closes without
// manual lead review.
type Suspension struct {
	ParticipantID string
	Reason        string
	AppliedAt     time.Time
	Duration      time.Duration
	Indefinite    bool
}

// ActiveAt reports whether the suspension covers the given instant.
func (s Suspension) ActiveAt(now time.Time) bool {
	if now.Before(s.AppliedAt) {
		return false
	}
	if s.Indefinite {
		return true
	}
	return now.Before(s.AppliedAt.Add(s.Duration))
}

// Until returns the end of the window; ok is false for indefinite
// suspensions.
func (s Suspension) Until() (end time.Time, ok bool) {
	if s.Indefinite {
		return time.Time{}, false
	}
	return s.AppliedAt.Add(s.Duration), true
}
