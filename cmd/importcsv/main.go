// Command importcsv runs an import pipeline against a CSV file from the
// command line:
//
//	importcsv participants  registrations.csv
//	importcsv mentors       mentors.csv
//	importcsv assignments   pairs.csv
//
// Missing arguments or an unreadable file are fatal pre-batch errors.
// Per-row problems never abort the run; they land in the printed report so
// the operator can fix and re-run just the rows that failed. Re-running a
// whole file is safe: existing identities come back as skips.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"cohort/internal/assignment"
	"cohort/internal/batch"
	"cohort/internal/config"
	"cohort/internal/importer"
	"cohort/internal/logging"
	"cohort/internal/store"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <participants|mentors|assignments> <file.csv>\n", os.Args[0])
		os.Exit(1)
	}

	kind, err := importer.ParseKind(os.Args[1])
	if err != nil {
		fatal(err)
	}

	f, err := os.Open(os.Args[2])
	if err != nil {
		fatal(fmt.Errorf("open %s: %w", os.Args[2], err))
	}
	defer f.Close()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		fatal(fmt.Errorf("connect database: %w", err))
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Ping(ctx); err != nil {
		fatal(fmt.Errorf("database unreachable: %w", err))
	}
	if err := st.EnsureSchema(ctx); err != nil {
		fatal(err)
	}

	rows, err := importer.ReadRows(f)
	if err != nil {
		fatal(err)
	}

	svc := importer.NewService(st.Identities, assignment.NewLedger(st.ForAssignments()))
	report, runErr := svc.Run(ctx, kind, rows)
	printReport(report)
	if runErr != nil {
		fatal(runErr)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func printReport(report *batch.Report) {
	if report == nil {
		return
	}
	fmt.Printf("total:     %d\n", report.Total)
	fmt.Printf("succeeded: %d\n", report.Succeeded)
	fmt.Printf("skipped:   %d\n", report.Skipped)
	fmt.Printf("failed:    %d\n", report.Failed)
	for _, f := range report.Failures {
		fmt.Printf("  %s: %s\n", f.Identifier, f.Reason)
	}
	for _, n := range report.Notes {
		fmt.Printf("  note %s: %s\n", n.Identifier, n.Note)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
