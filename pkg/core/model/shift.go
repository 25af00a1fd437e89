package model

import "time"

// Shift is a work slot defined by camp admins before the event. The core
// treats shifts as immutable reference data; only claims on them change.
type Shift struct {
	ID           string
	Name         string
	Location     string
	Start        time.Time
	End          time.Time
	Capacity     int
	PointsValue  int
	Urgent       bool
	Requirements []string
}
