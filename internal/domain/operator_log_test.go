package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperatorLogID(t *testing.T) {
	at := time.UnixMilli(1718000000123)
	first := NewOperatorLogID(at)
	second := NewOperatorLogID(at)

	assert.Regexp(t, regexp.MustCompile(`^LOG-1718000000123-[0-9a-f]{8}$`), first)
	assert.NotEqual(t, first, second)
}

func TestNewOperatorLog_DerivesShiftFigures(t *testing.T) {
	at := time.Date(2026, 3, 2, 6, 5, 0, 0, time.UTC)
	draft := OperatorLogDraft{
		MachineID:     "EX-200",
		StartTime:     "22:00",
		EndTime:       "06:00",
		StartOdometer: 1200,
		EndOdometer:   1262.5,
		Checklist:     Checklist{Tires: true, Oil: true, Hydraulics: true, Brakes: true},
	}

	log, err := NewOperatorLog(draft, at)
	require.NoError(t, err)
	assert.Contains(t, log.ID, "LOG-1772431500000-")
	assert.InDelta(t, 62.5, log.Distance, 0.001)
	assert.InDelta(t, 8, log.ShiftHours, 0.001)
	assert.True(t, log.ChecklistComplete)
	assert.Equal(t, at, log.SubmittedAt)

	_, err = NewOperatorLog(OperatorLogDraft{StartTime: "late", EndTime: "06:00"}, at)
	assert.Error(t, err)
}

func TestOperatorLogDraft_DistanceAndHours(t *testing.T) {
	d := OperatorLogDraft{StartTime: "07:00", EndTime: "16:30", StartOdometer: 1200, EndOdometer: 1262.5}
	assert.InDelta(t, 62.5, d.Distance(), 0.001)

	h, err := d.Hours()
	require.NoError(t, err)
	assert.InDelta(t, 9.5, h, 0.001)

	night := OperatorLogDraft{StartTime: "22:00", EndTime: "06:00"}
	h, err = night.Hours()
	require.NoError(t, err)
	assert.InDelta(t, 8, h, 0.001)

	_, err = OperatorLogDraft{StartTime: "late", EndTime: "06:00"}.Hours()
	assert.Error(t, err)
}

func TestChecklist_Complete(t *testing.T) {
	assert.True(t, Checklist{Tires: true, Oil: true, Hydraulics: true, Brakes: true}.Complete())
	assert.False(t, Checklist{Tires: true, Oil: true, Hydraulics: true}.Complete())
}
