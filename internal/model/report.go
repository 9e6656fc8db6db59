package model

import (
	"errors"
	"fmt"
	"time"
)

// Report is the combined outcome of the Y and mt classification runs for one subject
type Report struct {
	Subject     string     `json:"subject"`      // Input file or request label
	GeneratedAt time.Time  `json:"generated_at"` // When the runs completed
	Build       Build      `json:"build"`        // Reference build of the observations
	YCalls      int        `json:"y_calls"`      // Eligible Y observations
	MTCalls     int        `json:"mt_calls"`     // Eligible mt observations
	Y           *RunResult `json:"y,omitempty"`  // Nil when the subject has no Y observations
	MT          *RunResult `json:"mt,omitempty"` // Nil when the subject has no mt observations
}

// RunResult is the outcome of one classification run
type RunResult struct {
	ID         string      `json:"id"`                  // Run id (uuid)
	Kind       Kind        `json:"kind"`                // y or mt
	Source     string      `json:"source,omitempty"`    // Tree provider label
	Timestamp  string      `json:"timestamp,omitempty"` // Tree document timestamp
	Candidates []Candidate `json:"candidates"`          // Ranked, best first
	Lineages   []Lineage   `json:"lineages,omitempty"`  // Families linked along the top candidate's path
	Stats      RunStats    `json:"stats"`
	Duration   Duration    `json:"duration"`
	Error      string      `json:"error,omitempty"` // Set when the run failed; Candidates is then empty

	err error
}

// RunStats are traversal-order counts gathered while classifying
type RunStats struct {
	Nodes       int `json:"nodes"`        // Tree nodes visited
	Variants    int `json:"variants"`     // Variants visited
	DerivedHits int `json:"derived_hits"` // Variants observed in the derived state
}

// Duration marshals as a human readable string
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// NewFailedRun records a run that aborted with err
func NewFailedRun(id string, kind Kind, err error) *RunResult {
	return &RunResult{
		ID:         id,
		Kind:       kind,
		Candidates: []Candidate{},
		Error:      err.Error(),
		err:        err,
	}
}

// Err returns the run's failure, if any
func (r *RunResult) Err() error {
	if r == nil {
		return nil
	}
	if r.err == nil && r.Error != "" {
		return errors.New(r.Error)
	}
	return r.err
}

// GetError lets a RunResult travel through a worker pool
func (r *RunResult) GetError() error {
	return r.Err()
}

// Top returns the best candidate
func (r *RunResult) Top() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Run returns the result for a kind
func (r *Report) Run(kind Kind) *RunResult {
	if kind == KindMT {
		return r.MT
	}
	return r.Y
}

// Runs returns the non-nil run results, Y first
func (r *Report) Runs() []*RunResult {
	var runs []*RunResult
	if r.Y != nil {
		runs = append(runs, r.Y)
	}
	if r.MT != nil {
		runs = append(runs, r.MT)
	}
	return runs
}

// Empty reports whether no run produced a candidate
func (r *Report) Empty() bool {
	for _, run := range r.Runs() {
		if len(run.Candidates) > 0 {
			return false
		}
	}
	return true
}

// Err joins the errors of failed runs
func (r *Report) Err() error {
	var errs []error
	for _, run := range r.Runs() {
		if err := run.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s run: %w", run.Kind.Label(), err))
		}
	}
	return errors.Join(errs...)
}
