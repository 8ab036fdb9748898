package campaign

import "time"

// Outcome is what happened to a single row.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeDryRun  Outcome = "dry-run"
	OutcomeError   Outcome = "error"
)

// RowOutcome records the result for one spreadsheet row.
type RowOutcome struct {
	// Row is the 1-based data row number (the header is not counted).
	Row int

	// Recipient is the trimmed address, empty for skipped rows.
	Recipient string

	Outcome Outcome

	// Reason explains skipped and error outcomes.
	Reason string

	// Attachments is the number of files attached to the message.
	Attachments int

	// Size is the encoded message size in bytes.
	Size int
}

// RunResult summarizes a run. It is returned to the caller and not kept
// anywhere else.
type RunResult struct {
	RunID     string
	DryRun    bool
	Total     int
	Sent      int
	Outcomes  []RowOutcome
	StartedAt time.Time
	Duration  time.Duration

	// Cancelled is set when the context ended the loop early; Outcomes
	// then covers fewer than Total rows.
	Cancelled bool
}

// Processed returns the number of rows that have an outcome.
func (r *RunResult) Processed() int {
	return len(r.Outcomes)
}

// Count returns how many rows ended with outcome o.
func (r *RunResult) Count(o Outcome) int {
	n := 0
	for _, row := range r.Outcomes {
		if row.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the rows whose submission or composition failed.
func (r *RunResult) Failed() []RowOutcome {
	var out []RowOutcome
	for _, row := range r.Outcomes {
		if row.Outcome == OutcomeError {
			out = append(out, row)
		}
	}
	return out
}
