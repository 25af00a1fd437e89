package standing

import (
	"sort"
	"time"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// Suspension windows by no-show count.
const (
	firstSuspension  = 24 * time.Hour
	secondSuspension = 72 * time.Hour
)

// NoShowTimes collects a participant's no-show wall-clock times from the
// folded claim set, oldest first.
func NoShowTimes(claims map[string]*model.ShiftClaim, participantID string) []time.Time {
	var out []time.Time
	for _, claim := range claims {
		if claim.ParticipantID == participantID && claim.Status == model.ClaimStatusNoShow && !claim.NoShowAt.IsZero() {
			out = append(out, claim.NoShowAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Suspensions derives the penalty schedule from a participant's no-show
// times: the first no-show opens a 24 hour window, the second 72 hours,
// and from the third on the window stays open until a lead reviews it.
// The schedule is a pure function of the no-show history, so it needs no
// timers and no stored state; every reader derives the same windows.
func Suspensions(participantID string, noShows []time.Time) []model.Suspension {
	if len(noShows) == 0 {
		return nil
	}
	times := make([]time.Time, len(noShows))
	copy(times, noShows)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]model.Suspension, 0, len(times))
	for i, at := range times {
		s := model.Suspension{ParticipantID: participantID, AppliedAt: at}
		switch i {
		case 0:
			s.Duration = firstSuspension
			s.Reason = "first no-show"
		case 1:
			s.Duration = secondSuspension
			s.Reason = "second no-show"
		default:
			s.Indefinite = true
			s.Reason = "repeated no-shows, pending lead review"
		}
		out = append(out, s)
	}
	return out
}

// ActiveSuspension returns the window covering now, preferring the most
// recent when several overlap. ok is false when the participant is clear.
func ActiveSuspension(participantID string, noShows []time.Time, now time.Time) (model.Suspension, bool) {
	suspensions := Suspensions(participantID, noShows)
	for i := len(suspensions) - 1; i >= 0; i-- {
		if suspensions[i].ActiveAt(now) {
			return suspensions[i], true
		}
	}
	return model.Suspension{}, false
}
