package db

import (
	"fmt"

	"github.com/emberfield/meshrota/pkg/core/model"
)

// Record is one event as stored: the indexed coordinates plus the full
// wire envelope, so loads round-trip through the same codec as the mesh.
type Record struct {
	EventID string
	Origin  string
	TS      uint64
	Kind    string
	Data    []byte
}

// RecordFromEvent encodes an event into its stored form.
func RecordFromEvent(ev model.Event) (Record, error) {
	data, err := model.EncodeEvent(ev)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}
	return Record{
		EventID: ev.ID,
		Origin:  ev.Origin,
		TS:      ev.TS,
		Kind:    string(ev.Kind),
		Data:    data,
	}, nil
}

// Event decodes the stored envelope back into an event.
func (r Record) Event() (model.Event, error) {
	return model.DecodeEvent(r.Data)
}
