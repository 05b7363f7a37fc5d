package pipeline

import (
	"encoding/json"
	"time"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// OutcomeKind classifies what happened to one candidate.
type OutcomeKind string

const (
	OutcomeSaved   OutcomeKind = "saved"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Skip reasons
const (
	ReasonAlreadyStored = "already stored"
	ReasonDuplicate     = "stored concurrently"
)

// Outcome is the per-candidate result of a run.
type Outcome struct {
	Link     string
	Title    string
	Kind     OutcomeKind
	Reason   string // Skip reason
	Snapshot bool   // Saved with a PDF snapshot
	Err      error  // Failure cause
}

// Result summarises a run. Only Status, SavedCount and Message are part
// of the wire format.
type Result struct {
	Status     Status
	SavedCount int
	Message    string

	Candidates int
	Skipped    int
	Failed     int
	Outcomes   []Outcome
	Duration   time.Duration
}

// MarshalJSON renders {"status":"success","saved_count":N} or
// {"status":"error","message":"..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Status == StatusError {
		return json.Marshal(struct {
			Status  Status `json:"status"`
			Message string `json:"message"`
		}{r.Status, r.Message})
	}
	return json.Marshal(struct {
		Status     Status `json:"status"`
		SavedCount int    `json:"saved_count"`
	}{r.Status, r.SavedCount})
}

func (r *Result) record(o Outcome) {
	switch o.Kind {
	case OutcomeSaved:
		r.SavedCount++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}
