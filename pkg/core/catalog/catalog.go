// Package catalog loads the camp's reference data: the shift catalog and
// the roster. Both are authored off-device before the session and treated
// as read-only input; every device folds events against the same catalog.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/emberfield/meshrota/pkg/core/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Window bounds recurring-template expansion. Occurrences outside it are
// not materialized.
type Window struct {
	From  time.Time
	Until time.Time
}

// ShiftEntry is one concrete shift in shifts.yaml.
type ShiftEntry struct {
	ID           string    `yaml:"id" validate:"required"`
	Name         string    `yaml:"name" validate:"required"`
	Location     string    `yaml:"location,omitempty"`
	Start        time.Time `yaml:"start" validate:"required"`
	End          time.Time `yaml:"end" validate:"required"`
	Capacity     int       `yaml:"capacity" validate:"required,min=1"`
	Points       int       `yaml:"points" validate:"required,min=1"`
	Urgent       bool      `yaml:"urgent,omitempty"`
	Requirements []string  `yaml:"requirements,omitempty"`
}

// TemplateEntry is a recurring shift in shifts.yaml. Each rrule occurrence
// inside the expansion window becomes a concrete shift whose id is
// "<idPrefix>-<date>", so every device derives identical occurrence ids.
type TemplateEntry struct {
	IDPrefix      string   `yaml:"idPrefix" validate:"required"`
	Name          string   `yaml:"name" validate:"required"`
	Location      string   `yaml:"location,omitempty"`
	RRule         string   `yaml:"rrule" validate:"required"`
	StartTime     string   `yaml:"startTime" validate:"required"`
	DurationHours float64  `yaml:"durationHours" validate:"required,gt=0"`
	Capacity      int      `yaml:"capacity" validate:"required,min=1"`
	Points        int      `yaml:"points" validate:"required,min=1"`
	Urgent        bool     `yaml:"urgent,omitempty"`
	Requirements  []string `yaml:"requirements,omitempty"`
}

// ShiftsFile is the top-level structure of shifts.yaml.
type ShiftsFile struct {
	Shifts    []ShiftEntry    `yaml:"shifts,omitempty" validate:"dive"`
	Templates []TemplateEntry `yaml:"templates,omitempty" validate:"dive"`
}

// RosterEntry is one participant in roster.yaml.
type RosterEntry struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
	Lead bool   `yaml:"lead,omitempty"`
}

// RosterFile is the top-level structure of roster.yaml.
type RosterFile struct {
	Participants []RosterEntry `yaml:"participants" validate:"required,min=1,dive"`
}

// LoadShifts reads shifts.yaml from path and expands templates across the
// window. The result is sorted by start time then id.
func LoadShifts(path string, window Window) ([]model.Shift, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shift catalog: %w", err)
	}

	var file ShiftsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse shift catalog: %w", err)
	}
	if err := ValidateShifts(&file); err != nil {
		return nil, err
	}

	shifts := make([]model.Shift, 0, len(file.Shifts))
	for _, entry := range file.Shifts {
		shifts = append(shifts, model.Shift{
			ID:           entry.ID,
			Name:         entry.Name,
			Location:     entry.Location,
			Start:        entry.Start.UTC(),
			End:          entry.End.UTC(),
			Capacity:     entry.Capacity,
			PointsValue:  entry.Points,
			Urgent:       entry.Urgent,
			Requirements: entry.Requirements,
		})
	}

	for i, tmpl := range file.Templates {
		expanded, err := expandTemplate(tmpl, window)
		if err != nil {
			return nil, fmt.Errorf("failed to expand template %d (%s): %w", i, tmpl.IDPrefix, err)
		}
		shifts = append(shifts, expanded...)
	}

	seen := make(map[string]struct{}, len(shifts))
	for _, s := range shifts {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate shift id %q in catalog", s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	sort.Slice(shifts, func(i, j int) bool {
		if !shifts[i].Start.Equal(shifts[j].Start) {
			return shifts[i].Start.Before(shifts[j].Start)
		}
		return shifts[i].ID < shifts[j].ID
	})
	return shifts, nil
}

// ValidateShifts runs struct validation plus the checks tags cannot
// express: time ordering, rrule syntax and startTime format.
func ValidateShifts(file *ShiftsFile) error {
	if err := validate.Struct(file); err != nil {
		return fmt.Errorf("shift catalog validation failed: %w", err)
	}
	for _, entry := range file.Shifts {
		if !entry.End.After(entry.Start) {
			return fmt.Errorf("shift %q must end after it starts", entry.ID)
		}
	}
	for i, tmpl := range file.Templates {
		if _, err := rrule.StrToRRule(tmpl.RRule); err != nil {
			return fmt.Errorf("invalid rrule in templates[%d]: %w", i, err)
		}
		if _, err := time.Parse("15:04", tmpl.StartTime); err != nil {
			return fmt.Errorf("invalid startTime in templates[%d]: %w", i, err)
		}
	}
	return nil
}

func expandTemplate(tmpl TemplateEntry, window Window) ([]model.Shift, error) {
	rule, err := rrule.StrToRRule(tmpl.RRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule: %w", err)
	}
	clock, err := time.Parse("15:04", tmpl.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse startTime: %w", err)
	}

	// Occurrences carry the rule's DTStart clock time, so anchor at the
	// window's day boundary and match whole days; the shift's own start
	// time is applied below.
	windowStart := window.From.UTC().Truncate(24 * time.Hour)
	rule.DTStart(windowStart)
	duration := time.Duration(tmpl.DurationHours * float64(time.Hour))

	var shifts []model.Shift
	for _, occ := range rule.Between(windowStart, window.Until.UTC(), true) {
		start := time.Date(occ.Year(), occ.Month(), occ.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
		shifts = append(shifts, model.Shift{
			ID:           fmt.Sprintf("%s-%s", tmpl.IDPrefix, occ.Format("2006-01-02")),
			Name:         tmpl.Name,
			Location:     tmpl.Location,
			Start:        start,
			End:          start.Add(duration),
			Capacity:     tmpl.Capacity,
			PointsValue:  tmpl.Points,
			Urgent:       tmpl.Urgent,
			Requirements: tmpl.Requirements,
		})
	}
	return shifts, nil
}

// LoadRoster reads roster.yaml from path.
func LoadRoster(path string) ([]model.Participant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var file RosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("roster validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Participants))
	participants := make([]model.Participant, 0, len(file.Participants))
	for _, entry := range file.Participants {
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate participant id %q in roster", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		role := model.RoleParticipant
		if entry.Lead {
			role = model.RoleLead
		}
		participants = append(participants, model.Participant{
			ID:          entry.ID,
			DisplayName: entry.Name,
			Role:        role,
		})
	}
	return participants, nil
}
