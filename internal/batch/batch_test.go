package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRunCounts(t *testing.T) {
	outcomes := []Outcome{
		Succeeded("a"),
		Skipped("b", "duplicate"),
		Failed("c", "bad row"),
		Succeeded("d"),
	}

	report, err := Run(context.Background(), len(outcomes), func(_ context.Context, i int) Outcome {
		return outcomes[i]
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Total != 4 || report.Succeeded != 2 || report.Skipped != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("failures = %v", report.Failures)
	}
	// Non-successes stay in input order.
	if report.Failures[0].Identifier != "b" || report.Failures[1].Identifier != "c" {
		t.Errorf("failure order = %v", report.Failures)
	}
}

func TestRunIsolation(t *testing.T) {
	// Item 2 is deliberately broken; every other item must still run.
	var processed []int

	report, err := Run(context.Background(), 5, func(_ context.Context, i int) Outcome {
		processed = append(processed, i)
		if i == 2 {
			return Failed(fmt.Sprintf("item %d", i+1), "deliberately malformed")
		}
		return Succeeded(fmt.Sprintf("item %d", i+1))
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(processed) != 5 {
		t.Errorf("processed %d items, want 5", len(processed))
	}
	if report.Succeeded != 4 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunPanicRecovery(t *testing.T) {
	report, err := Run(context.Background(), 3, func(_ context.Context, i int) Outcome {
		if i == 1 {
			panic("boom")
		}
		return Succeeded(fmt.Sprintf("item %d", i+1))
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Identifier != "item 2" {
		t.Fatalf("failures = %v", report.Failures)
	}
}

func TestRunFatalAborts(t *testing.T) {
	storageDown := errors.New("connection refused")
	var processed int

	report, err := Run(context.Background(), 5, func(_ context.Context, i int) Outcome {
		processed++
		if i == 1 {
			return Fatal(fmt.Sprintf("item %d", i+1), storageDown)
		}
		return Succeeded(fmt.Sprintf("item %d", i+1))
	})

	if !errors.Is(err, ErrBatchAborted) {
		t.Fatalf("err = %v, want ErrBatchAborted", err)
	}
	if processed != 2 {
		t.Errorf("processed %d items before abort, want 2", processed)
	}
	// The partial report is still produced.
	if report == nil || report.Total != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunEmpty(t *testing.T) {
	report, err := Run(context.Background(), 0, func(_ context.Context, i int) Outcome {
		t.Fatal("exec should not be called")
		return Outcome{}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestNotes(t *testing.T) {
	report, err := Run(context.Background(), 2, func(_ context.Context, i int) Outcome {
		if i == 0 {
			return SucceededNote("p1", "already assigned")
		}
		return Succeeded("p2")
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Notes) != 1 || report.Notes[0].Note != "already assigned" {
		t.Errorf("notes = %v", report.Notes)
	}
}
