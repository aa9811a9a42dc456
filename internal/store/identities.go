package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cohort/internal/identity"
)

// IdentityRepo persists identity records, keyed by normalized email.
type IdentityRepo struct {
	pool *pgxpool.Pool
}

const identityColumns = `id, email, name, mobile, institution, role, active,
	password_hash, description, skills, assigned_mentor, registered_at`

func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var id identity.Identity
	err := row.Scan(
		&id.ID, &id.Email, &id.Name, &id.Mobile, &id.Institution, &id.Role,
		&id.Active, &id.PasswordHash, &id.Description, &id.Skills,
		&id.AssignedMentor, &id.RegisteredAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &id, nil
}

// FindByEmail looks up an identity by its normalized email.
// Returns ErrNotFound when no record exists.
func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities WHERE email = $1
	`, identity.NormalizeEmail(email))
	return scanIdentity(row)
}

// Create inserts a new identity. Returns ErrDuplicate when the email is
// already taken.
func (r *IdentityRepo) Create(ctx context.Context, id *identity.Identity) error {
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities
			(id, email, name, mobile, institution, role, active,
			 password_hash, description, skills, assigned_mentor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, id.ID, identity.NormalizeEmail(id.Email), id.Name, id.Mobile,
		id.Institution, id.Role, id.Active, id.PasswordHash,
		id.Description, id.Skills, id.AssignedMentor)
	return mapError(err)
}

// Save updates an existing identity's mutable fields.
func (r *IdentityRepo) Save(ctx context.Context, id *identity.Identity) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identities
		SET name = $2, mobile = $3, institution = $4, active = $5,
		    password_hash = $6, description = $7, skills = $8
		WHERE email = $1
	`, identity.NormalizeEmail(id.Email), id.Name, id.Mobile, id.Institution,
		id.Active, id.PasswordHash, id.Description, id.Skills)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an identity by email. Deleting a missing record returns
// ErrNotFound.
func (r *IdentityRepo) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE email = $1`,
		identity.NormalizeEmail(email))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRole returns all identities with the given role, ordered by email
// for deterministic output.
func (r *IdentityRepo) ListByRole(ctx context.Context, role identity.Role) ([]identity.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+`
		FROM identities WHERE role = $1
		ORDER BY email
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list %s identities: %w", role, err)
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *id)
	}
	return out, rows.Err()
}
