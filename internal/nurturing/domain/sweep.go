package domain

// Outcome of processing one lead inside a sweep.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

// SweepResult aggregates one sweep invocation.
type SweepResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Record counts one processed lead.
func (r *SweepResult) Record(o Outcome) {
	r.Processed++
	switch o {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}
