package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfield/meshrota/pkg/core/model"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{"plain words", "trade list", []string{"trade", "list"}},
		{"double quoted argument", `trade propose c1 bob --message "back is sore"`,
			[]string{"trade", "propose", "c1", "bob", "--message", "back is sore"}},
		{"single quoted argument", "trade reject t1 --reason 'too far'",
			[]string{"trade", "reject", "t1", "--reason", "too far"}},
		{"quotes joined to a word", `claim shift-"water run"`, []string{"claim", "shift-water run"}},
		{"extra whitespace", "  standing   alice  ", []string{"standing", "alice"}},
		{"empty quotes drop out", `claim ""`, []string{"claim"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := parseCommandLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, parts)
		})
	}
}

func TestParseCommandLine_UnclosedQuote(t *testing.T) {
	_, err := parseCommandLine(`trade propose c1 bob --message "half a thought`)
	assert.ErrorContains(t, err, "unclosed quote")
}

func TestStatusMarker(t *testing.T) {
	assert.Equal(t, "✓", statusMarker(model.ClaimStatusCompleted))
	assert.Equal(t, "✗", statusMarker(model.ClaimStatusNoShow))
	assert.Equal(t, "✗", statusMarker(model.ClaimStatusCancelled))
	assert.Equal(t, "•", statusMarker(model.ClaimStatusClaimed))
	assert.Equal(t, "•", statusMarker(model.ClaimStatusInProgress))
}

func TestShiftLine(t *testing.T) {
	start := time.Date(2026, 8, 21, 18, 0, 0, 0, time.UTC)
	shift := model.Shift{
		ID:    "shift-dinner",
		Name:  "Dinner crew",
		Start: start,
		End:   start.Add(3 * time.Hour),
	}

	line := shiftLine(shift)
	assert.Equal(t, "shift-dinner  Fri Aug 21 18:00 - 21:00  Dinner crew", line)

	shift.Urgent = true
	assert.Equal(t, "shift-dinner  Fri Aug 21 18:00 - 21:00  Dinner crew [URGENT]", shiftLine(shift))
}
