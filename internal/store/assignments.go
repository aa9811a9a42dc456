package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepo persists both sides of the mentor↔participant relation.
//
// Link and Unlink write the participant-side reference and the mentor-side
// set inside a single transaction so a crash cannot leave one side written;
// the assignment ledger's repair pass covers corruption introduced outside
// this code path.
type AssignmentRepo struct {
	pool *pgxpool.Pool
}

// Link assigns a participant to a mentor. Any prior assignment of the
// participant, to this mentor or another, is superseded in the same
// transaction (last assignment wins).
func (r *AssignmentRepo) Link(ctx context.Context, mentorEmail, participantEmail string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// Drop any prior mentor-side entry for this participant.
		if _, err := tx.Exec(ctx, `
			DELETE FROM mentor_assignees WHERE participant_email = $1
		`, participantEmail); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO mentor_assignees (mentor_email, participant_email)
			VALUES ($1, $2)
			ON CONFLICT (mentor_email, participant_email) DO NOTHING
		`, mentorEmail, participantEmail); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE identities SET assigned_mentor = $2 WHERE email = $1
		`, participantEmail, mentorEmail)
		return err
	})
}

// Unlink removes the participant from the mentor's set and clears the
// participant-side reference only where it still points at this mentor.
func (r *AssignmentRepo) Unlink(ctx context.Context, mentorEmail, participantEmail string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM mentor_assignees
			WHERE mentor_email = $1 AND participant_email = $2
		`, mentorEmail, participantEmail); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE identities SET assigned_mentor = ''
			WHERE email = $1 AND assigned_mentor = $2
		`, participantEmail, mentorEmail)
		return err
	})
}

// MentorOf returns the participant-side mentor reference, or "" when the
// participant is unassigned. Returns ErrNotFound for an unknown participant.
func (r *AssignmentRepo) MentorOf(ctx context.Context, participantEmail string) (string, error) {
	var mentor string
	err := r.pool.QueryRow(ctx, `
		SELECT assigned_mentor FROM identities WHERE email = $1
	`, participantEmail).Scan(&mentor)
	if err != nil {
		return "", mapError(err)
	}
	return mentor, nil
}

// AssignedTo returns the mentor-side participant set, ordered for
// deterministic reports.
func (r *AssignmentRepo) AssignedTo(ctx context.Context, mentorEmail string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT participant_email FROM mentor_assignees
		WHERE mentor_email = $1
		ORDER BY participant_email
	`, mentorEmail)
	if err != nil {
		return nil, fmt.Errorf("assigned participants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignedPairs returns the full mentor-side relation as a
// participant → mentor map. Used by ListUnassigned and the repair pass,
// which must see the mentor side independently of the participant side.
func (r *AssignmentRepo) AssignedPairs(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT participant_email, mentor_email FROM mentor_assignees
	`)
	if err != nil {
		return nil, fmt.Errorf("assigned pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[string]string)
	for rows.Next() {
		var p, m string
		if err := rows.Scan(&p, &m); err != nil {
			return nil, err
		}
		pairs[p] = m
	}
	return pairs, rows.Err()
}

// SetMentorRef writes only the participant-side reference. Reserved for the
// repair pass; normal assignment goes through Link/Unlink.
func (r *AssignmentRepo) SetMentorRef(ctx context.Context, participantEmail, mentorEmail string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE identities SET assigned_mentor = $2 WHERE email = $1
	`, participantEmail, mentorEmail)
	return mapError(err)
}

// InsertPair writes only the mentor-side entry. Reserved for the repair pass.
func (r *AssignmentRepo) InsertPair(ctx context.Context, mentorEmail, participantEmail string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mentor_assignees (mentor_email, participant_email)
		VALUES ($1, $2)
		ON CONFLICT (mentor_email, participant_email) DO NOTHING
	`, mentorEmail, participantEmail)
	return mapError(err)
}

// DeletePair removes only the mentor-side entry. Reserved for the repair pass.
func (r *AssignmentRepo) DeletePair(ctx context.Context, mentorEmail, participantEmail string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM mentor_assignees
		WHERE mentor_email = $1 AND participant_email = $2
	`, mentorEmail, participantEmail)
	return mapError(err)
}

func (r *AssignmentRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
