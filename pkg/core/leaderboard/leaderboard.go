// Package leaderboard ranks participants by contribution for the shared
// camp display.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// Entry is one leaderboard row. Rows are anonymized per viewing device:
// everyone except the viewer reads as "Camper NN", so the board motivates
// without putting names next to scores.
type Entry struct {
	Rank             int
	ParticipantID    string
	DisplayName      string
	PointsEarned     int
	ShiftsCompleted  int
	ReliabilityScore float64
	Tier             model.Tier
	IsMe             bool
}

// Build ranks standing records by points earned, then reliability, then
// participant id. The id tiebreak keeps the ranking identical on every
// device even when scores tie.
func Build(records map[string]*model.StandingRecord, roster map[string]model.Participant, viewerID string) []Entry {
	entries := make([]Entry, 0, len(records))
	for id, rec := range records {
		entries = append(entries, Entry{
			ParticipantID:    id,
			PointsEarned:     rec.PointsEarned,
			ShiftsCompleted:  rec.ShiftsCompleted,
			ReliabilityScore: rec.ReliabilityScore,
			Tier:             rec.CurrentTier,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.PointsEarned != b.PointsEarned {
			return a.PointsEarned > b.PointsEarned
		}
		if a.ReliabilityScore != b.ReliabilityScore {
			return a.ReliabilityScore > b.ReliabilityScore
		}
		return a.ParticipantID < b.ParticipantID
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].ParticipantID == viewerID {
			entries[i].IsMe = true
			entries[i].DisplayName = viewerID
			if p, ok := roster[viewerID]; ok {
				entries[i].DisplayName = p.DisplayName
			}
			continue
		}
		entries[i].DisplayName = fmt.Sprintf("Camper %02d", i+1)
	}
	return entries
}
