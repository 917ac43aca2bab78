package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Checklist holds the pre-shift inspection results.
type Checklist struct {
	Tires      bool `json:"tires"`
	Oil        bool `json:"oil"`
	Hydraulics bool `json:"hydraulics"`
	Brakes     bool `json:"brakes"`
}

// Complete reports whether every item was checked.
func (c Checklist) Complete() bool {
	return c.Tires && c.Oil && c.Hydraulics && c.Brakes
}

// OperatorLogDraft is what an operator fills in for one shift.
type OperatorLogDraft struct {
	MachineID       string    `json:"machineId" validate:"required,max=64"`
	OperatorName    string    `json:"operatorName" validate:"required,max=120"`
	Date            string    `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string    `json:"startTime" validate:"required,clock"`
	EndTime         string    `json:"endTime" validate:"required,clock"`
	StartOdometer   float64   `json:"startOdometer" validate:"gte=0"`
	EndOdometer     float64   `json:"endOdometer" validate:"gtefield=StartOdometer"`
	FuelAddedLiters float64   `json:"fuelAddedLiters" validate:"gte=0"`
	Location        string    `json:"location" validate:"max=255"`
	Checklist       Checklist `json:"checklist"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

// OperatorLog is a submitted shift record with its derived shift figures.
type OperatorLog struct {
	ID string `json:"id"`
	OperatorLogDraft
	Distance          float64   `json:"distance"`
	ShiftHours        float64   `json:"shiftHours"`
	ChecklistComplete bool      `json:"checklistComplete"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// NewOperatorLog stamps draft with an id and its derived figures. The
// draft's times must already be valid clock values.
func NewOperatorLog(draft OperatorLogDraft, at time.Time) (*OperatorLog, error) {
	hours, err := draft.Hours()
	if err != nil {
		return nil, err
	}
	return &OperatorLog{
		ID:                NewOperatorLogID(at),
		OperatorLogDraft:  draft,
		Distance:          draft.Distance(),
		ShiftHours:        hours,
		ChecklistComplete: draft.Checklist.Complete(),
		SubmittedAt:       at,
	}, nil
}

// NewOperatorLogID derives the log id from the submission time. A random
// suffix keeps ids unique within one millisecond.
func NewOperatorLogID(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("LOG-%d-%s", at.UnixMilli(), suffix)
}

// Distance is the odometer delta for the shift.
func (d OperatorLogDraft) Distance() float64 {
	return d.EndOdometer - d.StartOdometer
}

// Hours returns the shift length. Shifts that cross midnight wrap around.
func (d OperatorLogDraft) Hours() (float64, error) {
	start, err := time.Parse("15:04", d.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	end, err := time.Parse("15:04", d.EndTime)
	if err != nil {
		return 0, fmt.Errorf("parse end time: %w", err)
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return end.Sub(start).Hours(), nil
}
