package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/emberfield/meshrota/internal/config"
	"github.com/emberfield/meshrota/internal/metrics"
	"github.com/emberfield/meshrota/pkg/core/engine"
	"github.com/emberfield/meshrota/pkg/core/model"
	"github.com/emberfield/meshrota/pkg/mesh"
	"github.com/emberfield/meshrota/pkg/sqlite"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Engine   *engine.Engine
	Store    *sqlite.Store
	Spool    *mesh.SpoolAdapter
	Registry *prometheus.Registry
	Metrics  *metrics.Core
	Logger   *zap.Logger
	Ctx      context.Context

	// Notes feeds FlushOutbox. The sync daemon detaches it because its
	// gossiper broadcasts directly.
	Notes <-chan engine.Note
	SubID int
}

// FlushOutbox spools every locally authored event that accumulated since
// the last flush, so the radio gateway picks it up without waiting for the
// sync daemon's next digest cycle.
func (a *AppContext) FlushOutbox() {
	if a.Spool == nil || a.Notes == nil {
		return
	}
	self := a.Engine.Self().ID
	for {
		select {
		case note := <-a.Notes:
			if note.Kind != engine.NoteLocalEvent {
				continue
			}
			frame, err := mesh.EncodeEventFrame(self, note.Event)
			if err != nil {
				a.Logger.Error("Failed to encode event for broadcast",
					zap.String("event_id", note.Event.ID), zap.Error(err))
				continue
			}
			if err := a.Spool.Send(frame); err != nil {
				a.Logger.Warn("Failed to spool event for broadcast",
					zap.String("event_id", note.Event.ID), zap.Error(err))
			}
		default:
			return
		}
	}
}

// DetachOutbox hands broadcast responsibility over to a gossiper.
func (a *AppContext) DetachOutbox() {
	if a.Notes != nil {
		a.Engine.Unsubscribe(a.SubID)
		a.Notes = nil
	}
}

// shiftLine formats one shift the way every listing prints it.
func shiftLine(s model.Shift) string {
	urgent := ""
	if s.Urgent {
		urgent = " [URGENT]"
	}
	return fmt.Sprintf("%s  %s - %s  %s%s",
		s.ID,
		s.Start.Format("Mon Jan 02 15:04"),
		s.End.Format("15:04"),
		s.Name,
		urgent,
	)
}

// warnIfSuspended prints the suspension notice that accompanies intents
// from a participant inside a penalty window. Suspensions warn, they never
// block.
func warnIfSuspended(app *AppContext, participantID string) {
	view, ok := app.Engine.StandingFor(participantID)
	if !ok || view.Suspension == nil {
		return
	}
	if view.Suspension.Indefinite {
		fmt.Printf("⚠️  %s is suspended indefinitely (%s); a lead should review.\n",
			participantID, view.Suspension.Reason)
		return
	}
	if end, ok := view.Suspension.Until(); ok {
		fmt.Printf("⚠️  %s is suspended until %s (%s).\n",
			participantID, end.Format(time.RFC822), view.Suspension.Reason)
	}
}
