// Package assignment maintains the bidirectional mentor↔participant
// relation: a participant holds at most one mentor reference, a mentor
// holds a set of participant references, and the two sides must agree at
// every point readers can observe.
//
// Assignment semantics are deliberately idempotent so operators can re-run
// scripts safely: re-assigning an already-assigned participant reports
// success; assigning a participant who belongs to another mentor silently
// supersedes the prior assignment (last assignment wins, surfaced as a
// note); unassigning from a mentor the participant does not belong to is a
// no-op that never disturbs the real assignment.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cohort/internal/batch"
	"cohort/internal/identity"
)

// Store is the persistence surface the ledger drives. Link and Unlink must
// write both sides of the relation in one transaction; the repair-only
// methods exist so Repair can heal a side independently when that guarantee
// was violated by outside writes.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	ListByRole(ctx context.Context, role identity.Role) ([]identity.Identity, error)

	Link(ctx context.Context, mentorEmail, participantEmail string) error
	Unlink(ctx context.Context, mentorEmail, participantEmail string) error
	MentorOf(ctx context.Context, participantEmail string) (string, error)
	AssignedTo(ctx context.Context, mentorEmail string) ([]string, error)
	AssignedPairs(ctx context.Context) (map[string]string, error)

	SetMentorRef(ctx context.Context, participantEmail, mentorEmail string) error
	InsertPair(ctx context.Context, mentorEmail, participantEmail string) error
	DeletePair(ctx context.Context, mentorEmail, participantEmail string) error
}

// Ledger enforces the assignment invariants over a Store.
type Ledger struct {
	store Store
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Assign assigns each participant to the mentor. Per participant: already
// assigned to this mentor is a success ("already assigned"); assigned to a
// different mentor is superseded and noted; unknown ids fail that item only.
func (l *Ledger) Assign(ctx context.Context, mentorEmail string, participantEmails []string) (*batch.Report, error) {
	mentorEmail = identity.NormalizeEmail(mentorEmail)

	// The mentor is shared by every item; resolve it once.
	mentorErr := l.checkRole(ctx, mentorEmail, identity.RoleMentor)

	return batch.Run(ctx, len(participantEmails), func(ctx context.Context, i int) batch.Outcome {
		p := identity.NormalizeEmail(participantEmails[i])
		return l.assignOne(ctx, mentorEmail, p, mentorErr)
	})
}

// AssignDirective applies one participant→mentor directive and returns its
// outcome. The directive import pipeline uses this form, where every row
// names its own mentor.
func (l *Ledger) AssignDirective(ctx context.Context, participantEmail, mentorEmail string) batch.Outcome {
	mentorEmail = identity.NormalizeEmail(mentorEmail)
	participantEmail = identity.NormalizeEmail(participantEmail)
	mentorErr := l.checkRole(ctx, mentorEmail, identity.RoleMentor)
	return l.assignOne(ctx, mentorEmail, participantEmail, mentorErr)
}

// assignOne performs the per-participant assignment step. mentorErr carries
// the mentor resolution result so batch callers can resolve it once.
func (l *Ledger) assignOne(ctx context.Context, mentorEmail, p string, mentorErr error) batch.Outcome {
	if mentorErr != nil {
		if errors.Is(mentorErr, identity.ErrNotFound) {
			return batch.Failed(p, fmt.Sprintf("mentor %s not found", mentorEmail))
		}
		return batch.Fatal(p, mentorErr)
	}
	if err := l.checkRole(ctx, p, identity.RoleParticipant); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return batch.Failed(p, "participant not found")
		}
		return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
	}

	current, err := l.store.MentorOf(ctx, p)
	if err != nil {
		return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
	}

	if current == mentorEmail {
		return batch.SucceededNote(p, "already assigned")
	}

	if err := l.store.Link(ctx, mentorEmail, p); err != nil {
		return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
	}

	if current != "" {
		slog.Info("assignment superseded",
			"participant", p, "from", current, "to", mentorEmail)
		return batch.SucceededNote(p, fmt.Sprintf("reassigned from %s", current))
	}
	return batch.Succeeded(p)
}

// Unassign removes each participant from the mentor. A participant assigned
// to a different mentor is left untouched and still reports success: the
// operation must never clear a relationship belonging to another mentor.
func (l *Ledger) Unassign(ctx context.Context, mentorEmail string, participantEmails []string) (*batch.Report, error) {
	mentorEmail = identity.NormalizeEmail(mentorEmail)

	mentorErr := l.checkRole(ctx, mentorEmail, identity.RoleMentor)

	return batch.Run(ctx, len(participantEmails), func(ctx context.Context, i int) batch.Outcome {
		p := identity.NormalizeEmail(participantEmails[i])

		if mentorErr != nil {
			if errors.Is(mentorErr, identity.ErrNotFound) {
				return batch.Failed(p, fmt.Sprintf("mentor %s not found", mentorEmail))
			}
			return batch.Fatal(p, mentorErr)
		}
		if err := l.checkRole(ctx, p, identity.RoleParticipant); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return batch.Failed(p, "participant not found")
			}
			return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
		}

		current, err := l.store.MentorOf(ctx, p)
		if err != nil {
			return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
		}
		if current != "" && current != mentorEmail {
			return batch.SucceededNote(p, fmt.Sprintf("assigned to %s, not %s; left unchanged", current, mentorEmail))
		}

		// Unlink also covers the unassigned case: it only deletes what
		// matches, so clearing an already-clear pair is a no-op.
		if err := l.store.Unlink(ctx, mentorEmail, p); err != nil {
			return batch.Failed(p, fmt.Sprintf("storage error: %v", err))
		}
		return batch.Succeeded(p)
	})
}

// ListUnassigned returns every participant with no mentor on either side of
// the relation. Both sides are checked because a one-sided write (a crash,
// an out-of-band edit) can leave a participant referenced by a mentor set
// while its own reference is empty, or the reverse.
func (l *Ledger) ListUnassigned(ctx context.Context) ([]identity.Identity, error) {
	participants, err := l.store.ListByRole(ctx, identity.RoleParticipant)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	pairs, err := l.store.AssignedPairs(ctx)
	if err != nil {
		return nil, err
	}

	var out []identity.Identity
	for _, p := range participants {
		if p.AssignedMentor != "" {
			continue
		}
		if _, inSet := pairs[p.Email]; inSet {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Repair heals one-sided assignment writes and returns how many sides it
// fixed. The participant-side reference wins when the two sides name
// different mentors, since it reflects the most recent assignment; an empty
// participant side is restored from the mentor side.
func (l *Ledger) Repair(ctx context.Context) (int, error) {
	participants, err := l.store.ListByRole(ctx, identity.RoleParticipant)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}
	pairs, err := l.store.AssignedPairs(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, p := range participants {
		setMentor, inSet := pairs[p.Email]

		switch {
		case p.AssignedMentor != "" && !inSet:
			// Participant points at a mentor the set does not know about.
			if err := l.store.InsertPair(ctx, p.AssignedMentor, p.Email); err != nil {
				return fixed, fmt.Errorf("repair %s: %w", p.Email, err)
			}
			fixed++

		case p.AssignedMentor == "" && inSet:
			// Mentor set claims a participant whose own reference is empty.
			if err := l.store.SetMentorRef(ctx, p.Email, setMentor); err != nil {
				return fixed, fmt.Errorf("repair %s: %w", p.Email, err)
			}
			fixed++

		case p.AssignedMentor != "" && inSet && p.AssignedMentor != setMentor:
			// Sides disagree: drop the stale set entry, restore the current one.
			if err := l.store.DeletePair(ctx, setMentor, p.Email); err != nil {
				return fixed, fmt.Errorf("repair %s: %w", p.Email, err)
			}
			if err := l.store.InsertPair(ctx, p.AssignedMentor, p.Email); err != nil {
				return fixed, fmt.Errorf("repair %s: %w", p.Email, err)
			}
			fixed++
		}
	}

	if fixed > 0 {
		slog.Warn("assignment ledger repaired one-sided writes", "fixed", fixed)
	}
	return fixed, nil
}

// AssignedTo returns the mentor's participant set.
func (l *Ledger) AssignedTo(ctx context.Context, mentorEmail string) ([]string, error) {
	return l.store.AssignedTo(ctx, identity.NormalizeEmail(mentorEmail))
}

func (l *Ledger) checkRole(ctx context.Context, email string, role identity.Role) error {
	id, err := l.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if id.Role != role {
		return identity.ErrNotFound
	}
	return nil
}
