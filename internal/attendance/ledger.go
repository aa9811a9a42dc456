// Package attendance maintains the per-day attendance ledger: one record at
// most per (participant, calendar day), with idempotent mark, overwrite,
// and remove semantics in single and bulk forms.
//
// The ledger itself accepts any calendar day; restricting input to the
// program's day window is the caller's job (the web layer exposes the
// window via ProgramDays). Keeping the ledger permissive means offline
// corrections outside the window still work.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cohort/internal/batch"
	"cohort/internal/identity"
)

// Status is a recorded attendance state. The absence of a record means
// "unmarked", which is deliberately distinct from StatusAbsent.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Day is a calendar date with no time component, formatted YYYY-MM-DD.
type Day string

const dayLayout = "2006-01-02"

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DayOf(t), nil
}

// DayOf truncates a time to its calendar day.
func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

// ProgramDays enumerates the fixed program window: n sequential calendar
// days starting at start. Day selectors in the UI are built from this.
func ProgramDays(start time.Time, n int) []Day {
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, DayOf(start.AddDate(0, 0, i)))
	}
	return days
}

// Record is one attendance entry. ID is system-assigned and changes only
// when a record is removed and re-created, not when its status is
// overwritten in place.
type Record struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Day         Day       `json:"day"`
	Status      Status    `json:"status"`
	MarkedAt    time.Time `json:"marked_at"`
}

// Store is the persistence surface the ledger drives. The Upsert
// implementation must preserve the record id when overwriting an existing
// (participant, day) pair.
type Store interface {
	Upsert(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, participantEmail string, day Day) error
	Get(ctx context.Context, participantEmail string, day Day) (*Record, error)
	ForParticipant(ctx context.Context, participantEmail string) ([]Record, error)
	ForDay(ctx context.Context, day Day) ([]Record, error)
}

// Identities is the lookup surface for referential checks.
type Identities interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
}

// ErrNotFound is returned for an unknown participant reference.
var ErrNotFound = identity.ErrNotFound

// Ledger enforces the attendance invariants over a Store.
type Ledger struct {
	store  Store
	idents Identities
}

// NewLedger creates a ledger over the given persistence surfaces.
func NewLedger(store Store, idents Identities) *Ledger {
	return &Ledger{store: store, idents: idents}
}

// Mark upserts the record for (participant, day). Marking an already-marked
// pair overwrites the status in place.
func (l *Ledger) Mark(ctx context.Context, participantEmail string, day Day, status Status) (Record, error) {
	if !status.Valid() {
		return Record{}, fmt.Errorf("invalid status %q", status)
	}
	participantEmail = identity.NormalizeEmail(participantEmail)
	if err := l.checkParticipant(ctx, participantEmail); err != nil {
		return Record{}, err
	}
	return l.store.Upsert(ctx, Record{
		Participant: participantEmail,
		Day:         day,
		Status:      status,
	})
}

// Remove deletes the record for (participant, day). Removing an unmarked
// pair succeeds silently.
func (l *Ledger) Remove(ctx context.Context, participantEmail string, day Day) error {
	return l.store.Delete(ctx, identity.NormalizeEmail(participantEmail), day)
}

// Entry is one item of a bulk mark: a participant and the status to record.
type Entry struct {
	Participant string `json:"participant"`
	Status      Status `json:"status"`
}

// BulkMark applies Mark once per entry for a single day. One entry's
// failure (unknown participant, bad status, a scoped storage error) does
// not block the remaining entries; the report carries a reason per
// non-success.
func (l *Ledger) BulkMark(ctx context.Context, day Day, entries []Entry) (*batch.Report, error) {
	return batch.Run(ctx, len(entries), func(ctx context.Context, i int) batch.Outcome {
		e := entries[i]
		id := identity.NormalizeEmail(e.Participant)
		if id == "" {
			id = fmt.Sprintf("entry %d", i+1)
		}

		if _, err := l.Mark(ctx, e.Participant, day, e.Status); err != nil {
			if errors.Is(err, ErrNotFound) {
				return batch.Failed(id, "participant not found")
			}
			return batch.Failed(id, err.Error())
		}
		return batch.Succeeded(id)
	})
}

// Matrix returns each listed participant's status across the given days.
// Unmarked pairs are simply absent from the inner map.
func (l *Ledger) Matrix(ctx context.Context, participantEmails []string, days []Day) (map[string]map[Day]Status, error) {
	out := make(map[string]map[Day]Status, len(participantEmails))

	want := make(map[Day]bool, len(days))
	for _, d := range days {
		want[d] = true
	}

	for _, p := range participantEmails {
		p = identity.NormalizeEmail(p)
		recs, err := l.store.ForParticipant(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("attendance for %s: %w", p, err)
		}
		row := make(map[Day]Status)
		for _, rec := range recs {
			if want[rec.Day] {
				row[rec.Day] = rec.Status
			}
		}
		out[p] = row
	}
	return out, nil
}

// ForDay returns every record for one calendar day.
func (l *Ledger) ForDay(ctx context.Context, day Day) ([]Record, error) {
	return l.store.ForDay(ctx, day)
}

func (l *Ledger) checkParticipant(ctx context.Context, email string) error {
	id, err := l.idents.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("participant %s: %w", email, ErrNotFound)
		}
		return fmt.Errorf("lookup participant %s: %w", email, err)
	}
	if id.Role != identity.RoleParticipant {
		return fmt.Errorf("participant %s: %w", email, ErrNotFound)
	}
	return nil
}
