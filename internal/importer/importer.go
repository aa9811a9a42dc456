// Package importer drives the CSV-fed bulk pipelines: participant import,
// mentor import, and mentor-assignment directives. Each pipeline validates
// rows into typed candidates, resolves duplicates against existing
// identities, provisions default credentials, and reports per-row outcomes
// through the shared batch executor.
//
// Import sources are routinely re-run against partially imported data, so
// a row whose email already exists is a skip, never an error: the second
// run of the same file must produce zero new identities and a report the
// operator can read as "nothing left to do".
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cohort/internal/assignment"
	"cohort/internal/batch"
	"cohort/internal/credential"
	"cohort/internal/identity"
)

// Store is the identity persistence surface the import pipelines drive.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	Create(ctx context.Context, id *identity.Identity) error
}

// Service runs the import pipelines.
type Service struct {
	store  Store
	ledger *assignment.Ledger
}

// NewService creates an import service. The ledger is only needed for
// assignment-directive imports and may be nil otherwise.
func NewService(store Store, ledger *assignment.Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

// ReadRows parses a delimited text stream into rows. The reader is lenient
// about quoting and ragged field counts; shape problems are row-level
// concerns handled by the validators, not parse failures.
func ReadRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// dataRows drops the header line (informational only, never
// schema-enforced) and returns the remaining rows.
func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

// rowID labels a row for the report: the email when one is recognizable,
// otherwise the 1-based line number.
func rowID(row []string, emailIdx, line int) string {
	if emailIdx < len(row) {
		if e := identity.NormalizeEmail(row[emailIdx]); e != "" {
			return e
		}
	}
	return fmt.Sprintf("line %d", line)
}

// ImportParticipants runs the participant pipeline over raw CSV rows
// (header included). Field order: email, name, collegeName, mobile.
// The mobile number becomes the default credential, stored hashed.
func (s *Service) ImportParticipants(ctx context.Context, rows [][]string) (*batch.Report, error) {
	data := dataRows(rows)

	report, err := batch.Run(ctx, len(data), func(ctx context.Context, i int) batch.Outcome {
		row := data[i]
		line := i + 2 // 1-based, after header
		id := rowID(row, 0, line)

		if identity.IsEmptyRow(row) {
			return batch.Skipped(id, "empty row")
		}

		cand, err := identity.ParseParticipantRow(row)
		if err != nil {
			return batch.Failed(id, err.Error())
		}

		return s.createIdentity(ctx, &identity.Identity{
			Email:       cand.Email,
			Name:        cand.Name,
			Mobile:      cand.Mobile,
			Institution: cand.Institution,
			Role:        identity.RoleParticipant,
			Active:      true,
		}, cand.Mobile)
	})

	logReport(ctx, "participant import", report)
	return report, err
}

// ImportMentors runs the mentor pipeline over raw CSV rows (header
// included). Field order: name, mobile, email, description, skills.
func (s *Service) ImportMentors(ctx context.Context, rows [][]string) (*batch.Report, error) {
	data := dataRows(rows)

	report, err := batch.Run(ctx, len(data), func(ctx context.Context, i int) batch.Outcome {
		row := data[i]
		line := i + 2
		id := rowID(row, 2, line)

		if identity.IsEmptyRow(row) {
			return batch.Skipped(id, "empty row")
		}

		cand, err := identity.ParseMentorRow(row)
		if err != nil {
			return batch.Failed(id, err.Error())
		}

		return s.createIdentity(ctx, &identity.Identity{
			Email:       cand.Email,
			Name:        cand.Name,
			Mobile:      cand.Mobile,
			Role:        identity.RoleMentor,
			Active:      true,
			Description: cand.Description,
			Skills:      cand.Skills,
		}, cand.Mobile)
	})

	logReport(ctx, "mentor import", report)
	return report, err
}

// ImportAssignments applies assignment directives from raw CSV rows
// (header included). Field order: participantEmail, mentorEmail.
func (s *Service) ImportAssignments(ctx context.Context, rows [][]string) (*batch.Report, error) {
	if s.ledger == nil {
		return nil, errors.New("importer: no assignment ledger configured")
	}
	data := dataRows(rows)

	report, err := batch.Run(ctx, len(data), func(ctx context.Context, i int) batch.Outcome {
		row := data[i]
		line := i + 2
		id := rowID(row, 0, line)

		if identity.IsEmptyRow(row) {
			return batch.Skipped(id, "empty row")
		}

		d, err := identity.ParseAssignmentRow(row)
		if err != nil {
			return batch.Failed(id, err.Error())
		}
		return s.ledger.AssignDirective(ctx, d.ParticipantEmail, d.MentorEmail)
	})

	logReport(ctx, "assignment import", report)
	return report, err
}

// createIdentity resolves the candidate against existing identities and
// creates it when new. The duplicate check and the create race benignly
// with concurrent imports: a lost race surfaces as the storage layer's
// duplicate error and is reported as a skip, same as this check.
func (s *Service) createIdentity(ctx context.Context, id *identity.Identity, plainCredential string) batch.Outcome {
	existing, err := s.store.FindByEmail(ctx, id.Email)
	switch {
	case err == nil && existing != nil:
		return batch.Skipped(id.Email, "already registered")
	case err != nil && !errors.Is(err, identity.ErrNotFound):
		return batch.Failed(id.Email, fmt.Sprintf("storage error: %v", err))
	}

	hash, err := credential.Provision(plainCredential)
	if err != nil {
		return batch.Failed(id.Email, err.Error())
	}
	id.PasswordHash = hash

	if err := s.store.Create(ctx, id); err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			return batch.Skipped(id.Email, "already registered")
		}
		return batch.Failed(id.Email, fmt.Sprintf("storage error: %v", err))
	}
	return batch.Succeeded(id.Email)
}

func logReport(ctx context.Context, kind string, report *batch.Report) {
	if report == nil {
		return
	}
	slog.InfoContext(ctx, "batch finished",
		"kind", kind,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}

// Kind names an import pipeline for callers that select one by string
// (the web endpoint's path segment, the script runner's argument).
type Kind string

const (
	KindParticipants Kind = "participants"
	KindMentors      Kind = "mentors"
	KindAssignments  Kind = "assignments"
)

// ParseKind resolves a pipeline name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindParticipants:
		return KindParticipants, nil
	case KindMentors:
		return KindMentors, nil
	case KindAssignments:
		return KindAssignments, nil
	}
	return "", fmt.Errorf("unknown import kind %q (want participants, mentors, or assignments)", s)
}

// Run dispatches to the pipeline named by kind.
func (s *Service) Run(ctx context.Context, kind Kind, rows [][]string) (*batch.Report, error) {
	switch kind {
	case KindParticipants:
		return s.ImportParticipants(ctx, rows)
	case KindMentors:
		return s.ImportMentors(ctx, rows)
	case KindAssignments:
		return s.ImportAssignments(ctx, rows)
	}
	return nil, fmt.Errorf("unknown import kind %q", kind)
}
