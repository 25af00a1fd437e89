// Package trade folds trade-lifecycle events into trade state and
// arbitrates concurrent finalizations so a claim is transferred at most
// once, identically on every device.
package trade

import (
	"sort"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// State is the trade side of the fold.
type State struct {
	Trades map[string]*model.TradeRequest

	// Transferred maps a source claim id to the trade that won it.
	Transferred map[string]string
}

func NewState() *State {
	return &State{
		Trades:      make(map[string]*model.TradeRequest),
		Transferred: make(map[string]string),
	}
}

// Trade returns the trade with the given id, or nil.
func (s *State) Trade(id string) *model.TradeRequest {
	return s.Trades[id]
}

// SortedIDs returns all trade ids in ascending order. Sweeps and scans
// iterate in this order so derived notes come out identically everywhere.
func (s *State) SortedIDs() []string {
	ids := make([]string, 0, len(s.Trades))
	for id := range s.Trades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
