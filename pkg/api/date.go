package api

import (
	"fmt"
	"time"
)

// DayLayout is the canonical calendar-day format used on the wire.
const DayLayout = "2006-01-02"

// dayLayouts are the accepted inputs; the slash form is what some solver
// builds emit.
var dayLayouts = []string{DayLayout, "2006/01/02"}

// DayError reports a day string that matches none of the accepted layouts.
type DayError struct {
	Value string
	Err   error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("invalid date '%s': %v", e.Value, e.Err)
}

func (e *DayError) Unwrap() error { return e.Err }

// ParseDay parses a calendar day in YYYY-MM-DD or YYYY/MM/DD form.
func ParseDay(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dayLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &DayError{Value: s, Err: firstErr}
}

// FormatDay renders a day in the canonical layout.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}
