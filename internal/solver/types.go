package solver

import (
	"encoding/json"
	"time"
)

// Result is a validated solver response.
type Result struct {
	Status         string          `json:"status"`
	ObjectiveValue *float64        `json:"objective_value"`
	Assignments    []Assignment    `json:"assignments"`
	Understaffed   []Understaffing `json:"understaffed"`
	NurseStats     []NurseStat     `json:"nurse_stats"`
	Details        json.RawMessage `json:"details,omitempty"`

	// Raw is the response body as received.
	Raw []byte `json:"-"`
	// Elapsed is the wall-clock duration of the call.
	Elapsed time.Duration `json:"-"`
}

// Assignment places a nurse on a shift, using the solver's own names.
type Assignment struct {
	Day   string `json:"day"`
	Shift string `json:"shift"`
	Nurse string `json:"nurse"`
}

// Understaffing is a shortfall on one shift of one day.
type Understaffing struct {
	Day     string `json:"day"`
	Shift   string `json:"shift"`
	Missing int    `json:"missing"`
}

// NurseStat is the per-nurse summary of a solution.
type NurseStat struct {
	Nurse          string `json:"nurse"`
	AssignedShifts int    `json:"assigned_shifts"`
	Overtime       int    `json:"overtime"`
	Nights         int    `json:"nights"`
	Satisfaction   int    `json:"satisfaction"`
}
