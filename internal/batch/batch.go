// Package batch provides the shared executor that all bulk pipelines build
// on: CSV imports, assignment directives, and bulk attendance marking.
//
// The executor drives a bounded list of items sequentially, in input order,
// isolating each item so that one item's fault cannot abort the rest. Every
// item ends up in exactly one outcome class: succeeded, skipped, or failed.
// The only way to stop a batch early is a fatal outcome, reserved for
// conditions outside any single item (a lost storage connection, not a bad
// row).
package batch

import (
	"context"
	"errors"
	"fmt"
)

// Status is the outcome class of a single item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one item.
type Outcome struct {
	Status Status
	ID     string // item identifier for the report (row number, email, ...)
	Reason string // set for skipped and failed outcomes
	Note   string // optional informational note on a success

	fatal error
}

// Succeeded marks an item as processed.
func Succeeded(id string) Outcome {
	return Outcome{Status: StatusSucceeded, ID: id}
}

// SucceededNote marks an item as processed with an informational note,
// e.g. "already assigned" on an idempotent re-run.
func SucceededNote(id, note string) Outcome {
	return Outcome{Status: StatusSucceeded, ID: id, Note: note}
}

// Skipped marks an item as deliberately not processed. Skips are benign
// (the canonical case is a duplicate on re-import) and are reported
// separately from failures.
func Skipped(id, reason string) Outcome {
	return Outcome{Status: StatusSkipped, ID: id, Reason: reason}
}

// Failed marks an item as rejected with a reason the operator can act on.
func Failed(id, reason string) Outcome {
	return Outcome{Status: StatusFailed, ID: id, Reason: reason}
}

// Fatal marks a batch-level fault. Run records the item as failed, stops
// processing, and returns the error alongside the partial report.
func Fatal(id string, err error) Outcome {
	return Outcome{Status: StatusFailed, ID: id, Reason: err.Error(), fatal: err}
}

// Failure is one non-success entry in a report, in input order.
type Failure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// Note is an informational annotation on a successful item.
type Note struct {
	Identifier string `json:"identifier"`
	Note       string `json:"note"`
}

// Report is the aggregate result of one batch run. It is produced fresh per
// invocation and never persisted. Failures holds every non-success (both
// skips and failures) in input order so operators can fix and re-run just
// the rows that need it.
type Report struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
	Notes     []Note    `json:"notes,omitempty"`
}

// add folds one outcome into the report.
func (r *Report) add(o Outcome) {
	r.Total++
	switch o.Status {
	case StatusSucceeded:
		r.Succeeded++
		if o.Note != "" {
			r.Notes = append(r.Notes, Note{Identifier: o.ID, Note: o.Note})
		}
	case StatusSkipped:
		r.Skipped++
		r.Failures = append(r.Failures, Failure{Identifier: o.ID, Reason: o.Reason})
	default:
		r.Failed++
		r.Failures = append(r.Failures, Failure{Identifier: o.ID, Reason: o.Reason})
	}
}

// ErrBatchAborted wraps the fatal error when a run stops early.
var ErrBatchAborted = errors.New("batch aborted")

// Run executes count items through exec, sequentially and in input order.
// A panic inside exec is recovered and converted to a failed outcome for
// that item; processing continues with the next item. Run returns a non-nil
// error only for a fatal outcome, together with the report accumulated so
// far (the report is always produced, even when every item failed).
func Run(ctx context.Context, count int, exec func(ctx context.Context, i int) Outcome) (*Report, error) {
	report := &Report{}

	for i := 0; i < count; i++ {
		o := runOne(ctx, i, exec)
		report.add(o)
		if o.fatal != nil {
			return report, fmt.Errorf("%w: item %s: %v", ErrBatchAborted, o.ID, o.fatal)
		}
	}

	return report, nil
}

// runOne invokes exec for a single item with panic isolation.
func runOne(ctx context.Context, i int, exec func(ctx context.Context, i int) Outcome) (o Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			o = Failed(fmt.Sprintf("item %d", i+1), fmt.Sprintf("panic: %v", rec))
		}
	}()
	return exec(ctx, i)
}
