// Package identity defines the account model shared by every import and
// ledger entry point, plus the row contracts and validation rules for the
// CSV sources that produce accounts. It is the single source of truth for
// field contracts; batch pipelines must not re-declare them.
package identity

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors shared by every lookup surface over identity records.
// The storage layer maps driver conditions onto these; domain code branches
// with errors.Is and never sees driver errors.
var (
	ErrNotFound  = errors.New("identity not found")
	ErrDuplicate = errors.New("identity already exists")
)

// Role classifies an identity. The set is closed.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleMentor      Role = "mentor"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// Identity is an account record. The unique key is the normalized email.
// Mobile is validated but not required to be unique.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile"`
	Institution  string    `json:"institution,omitempty"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	Description  string    `json:"description,omitempty"`
	Skills       []string  `json:"skills,omitempty"`

	// AssignedMentor is the participant-side half of the assignment
	// relation: the email of the mentor this participant is assigned to,
	// or "" when unassigned. Only meaningful for RoleParticipant.
	AssignedMentor string `json:"assigned_mentor,omitempty"`

	RegisteredAt time.Time `json:"registered_at"`
}

// NormalizeEmail lower-cases and trims an email address. All lookups and
// stored keys go through this so that re-imports with different casing
// dedupe correctly.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
