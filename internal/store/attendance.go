package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cohort/internal/attendance"
)

// AttendanceRepo persists attendance records. The primary key on
// (participant_email, day) is what enforces at-most-one record per pair;
// Upsert overwrites the status in place, so the record id survives a
// remark but not a remove-then-mark.
type AttendanceRepo struct {
	pool *pgxpool.Pool
}

// Upsert inserts or overwrites the record for (participant, day) and
// returns the stored row.
func (r *AttendanceRepo) Upsert(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (id, participant_email, day, status, marked_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (participant_email, day)
		DO UPDATE SET status = EXCLUDED.status, marked_at = NOW()
		RETURNING id, participant_email, day, status, marked_at
	`, rec.ID, rec.Participant, rec.Day, rec.Status)

	var day time.Time
	var stored attendance.Record
	if err := row.Scan(&stored.ID, &stored.Participant, &day, &stored.Status, &stored.MarkedAt); err != nil {
		return attendance.Record{}, mapError(err)
	}
	stored.Day = attendance.DayOf(day)
	return stored, nil
}

// Delete removes the record for (participant, day). Removing an absent
// record is a no-op, not an error.
func (r *AttendanceRepo) Delete(ctx context.Context, participantEmail string, day attendance.Day) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM attendance_records
		WHERE participant_email = $1 AND day = $2
	`, participantEmail, day)
	return mapError(err)
}

// Get returns the record for (participant, day), or ErrNotFound.
func (r *AttendanceRepo) Get(ctx context.Context, participantEmail string, day attendance.Day) (*attendance.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, participant_email, day, status, marked_at
		FROM attendance_records
		WHERE participant_email = $1 AND day = $2
	`, participantEmail, day)

	var d time.Time
	var rec attendance.Record
	if err := row.Scan(&rec.ID, &rec.Participant, &d, &rec.Status, &rec.MarkedAt); err != nil {
		return nil, mapError(err)
	}
	rec.Day = attendance.DayOf(d)
	return &rec, nil
}

// ForParticipant returns all records for one participant, ordered by day.
func (r *AttendanceRepo) ForParticipant(ctx context.Context, participantEmail string) ([]attendance.Record, error) {
	return r.list(ctx, `
		SELECT id, participant_email, day, status, marked_at
		FROM attendance_records
		WHERE participant_email = $1
		ORDER BY day
	`, participantEmail)
}

// ForDay returns all records for one calendar day, ordered by participant.
func (r *AttendanceRepo) ForDay(ctx context.Context, day attendance.Day) ([]attendance.Record, error) {
	return r.list(ctx, `
		SELECT id, participant_email, day, status, marked_at
		FROM attendance_records
		WHERE day = $1
		ORDER BY participant_email
	`, day)
}

func (r *AttendanceRepo) list(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		var d time.Time
		var rec attendance.Record
		if err := rows.Scan(&rec.ID, &rec.Participant, &d, &rec.Status, &rec.MarkedAt); err != nil {
			return nil, err
		}
		rec.Day = attendance.DayOf(d)
		out = append(out, rec)
	}
	return out, rows.Err()
}
