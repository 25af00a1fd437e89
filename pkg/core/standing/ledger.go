// Package standing derives contribution records and no-show penalties from
// the folded claim set.
package standing

import (
	"github.com/emberfield/meshrota/pkg/core/model"
)

// Tier thresholds by completed shift count.
const (
	silverCompletions   = 5
	goldCompletions     = 12
	platinumCompletions = 20
)

// Compute builds a standing record for every roster participant from the
// folded claim set. Claims are immutable outcome records, so recomputing
// from them awards each completion exactly once no matter how often the
// fold reruns or in what order events arrived.
func Compute(claims map[string]*model.ShiftClaim, shifts map[string]model.Shift, roster map[string]model.Participant) map[string]*model.StandingRecord {
	records := make(map[string]*model.StandingRecord, len(roster))
	for id := range roster {
		records[id] = &model.StandingRecord{
			ParticipantID:    id,
			ReliabilityScore: 1,
			CurrentTier:      model.TierBronze,
		}
	}

	for _, claim := range claims {
		rec := records[claim.ParticipantID]
		if rec == nil {
			// Claims survive roster edits; keep scoring departed members.
			rec = &model.StandingRecord{
				ParticipantID:    claim.ParticipantID,
				ReliabilityScore: 1,
				CurrentTier:      model.TierBronze,
			}
			records[claim.ParticipantID] = rec
		}

		switch claim.Status {
		case model.ClaimStatusCompleted:
			rec.ShiftsCompleted++
			if shift, ok := shifts[claim.ShiftID]; ok {
				rec.PointsEarned += shift.PointsValue
			}
		case model.ClaimStatusNoShow:
			rec.ShiftsNoShow++
		}
	}

	for _, rec := range records {
		if total := rec.ShiftsCompleted + rec.ShiftsNoShow; total > 0 {
			rec.ReliabilityScore = float64(rec.ShiftsCompleted) / float64(total)
		}
		rec.CurrentTier = tierFor(rec.ShiftsCompleted)
	}
	return records
}

func tierFor(completed int) model.Tier {
	switch {
	case completed >= platinumCompletions:
		return model.TierPlatinum
	case completed >= goldCompletions:
		return model.TierGold
	case completed >= silverCompletions:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}
