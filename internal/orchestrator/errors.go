package orchestrator

import "errors"

var (
	// ErrScenarioNotFound is returned when a run targets a missing scenario.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrRunNotFound is returned when ingesting into a missing run.
	ErrRunNotFound = errors.New("solver run not found")

	// ErrInvalidResult is returned for an ingestion request that cannot be stored.
	ErrInvalidResult = errors.New("invalid run result")
)

// ResolutionError reports solver output that could not be mapped onto the
// unit's reference data. The run is failed and nothing is ingested.
type ResolutionError struct {
	RunID int64
	Err   error
}

func (e *ResolutionError) Error() string { return e.Err.Error() }

func (e *ResolutionError) Unwrap() error { return e.Err }
