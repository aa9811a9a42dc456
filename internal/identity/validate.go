package identity

// validate.go turns raw CSV rows into typed candidate records.
//
// Each import kind has a fixed field order and a minimum field count. A row
// that fails its shape or pattern checks is rejected with a reason; rejection
// of one row never aborts the batch it came from.

import (
	"fmt"
	"regexp"
	"strings"
)

// MobileDigits is the exact digit count a mobile number must have.
// The mobile number doubles as the default credential at import time.
const MobileDigits = 10

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe = regexp.MustCompile(`^[0-9]{10}$`)
)

// Field counts per import kind. Extra trailing fields are ignored.
const (
	ParticipantFields = 4 // email, name, collegeName, mobile
	MentorFields      = 5 // name, mobile, email, description, skills
	AssignmentFields  = 2 // participantEmail, mentorEmail
)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidMobile reports whether s is exactly MobileDigits digits.
func ValidMobile(s string) bool {
	return mobileRe.MatchString(strings.TrimSpace(s))
}

// ParticipantCandidate is a validated participant import row.
type ParticipantCandidate struct {
	Email       string
	Name        string
	Institution string
	Mobile      string
}

// MentorCandidate is a validated mentor import row.
type MentorCandidate struct {
	Name        string
	Mobile      string
	Email       string
	Description string
	Skills      []string
}

// AssignmentDirective is a validated assignment import row.
type AssignmentDirective struct {
	ParticipantEmail string
	MentorEmail      string
}

// ParseParticipantRow validates one participant CSV row
// (email, name, collegeName, mobile) and returns a candidate record.
func ParseParticipantRow(row []string) (ParticipantCandidate, error) {
	if len(row) < ParticipantFields {
		return ParticipantCandidate{}, fmt.Errorf("expected %d fields, got %d", ParticipantFields, len(row))
	}

	email := NormalizeEmail(row[0])
	name := strings.TrimSpace(row[1])
	college := strings.TrimSpace(row[2])
	mobile := strings.TrimSpace(row[3])

	if !ValidEmail(email) {
		return ParticipantCandidate{}, fmt.Errorf("invalid email %q", email)
	}
	if !ValidMobile(mobile) {
		return ParticipantCandidate{}, fmt.Errorf("invalid mobile %q (must be %d digits)", mobile, MobileDigits)
	}
	if name == "" {
		return ParticipantCandidate{}, fmt.Errorf("empty name")
	}

	return ParticipantCandidate{
		Email:       email,
		Name:        name,
		Institution: college,
		Mobile:      mobile,
	}, nil
}

// ParseMentorRow validates one mentor CSV row
// (name, mobile, email, description, skills) and returns a candidate record.
func ParseMentorRow(row []string) (MentorCandidate, error) {
	if len(row) < MentorFields {
		return MentorCandidate{}, fmt.Errorf("expected %d fields, got %d", MentorFields, len(row))
	}

	name := strings.TrimSpace(row[0])
	mobile := strings.TrimSpace(row[1])
	email := NormalizeEmail(row[2])
	description := strings.TrimSpace(row[3])

	if !ValidEmail(email) {
		return MentorCandidate{}, fmt.Errorf("invalid email %q", email)
	}
	if !ValidMobile(mobile) {
		return MentorCandidate{}, fmt.Errorf("invalid mobile %q (must be %d digits)", mobile, MobileDigits)
	}
	if name == "" {
		return MentorCandidate{}, fmt.Errorf("empty name")
	}

	return MentorCandidate{
		Name:        name,
		Mobile:      mobile,
		Email:       email,
		Description: description,
		Skills:      SplitSkills(row[4]),
	}, nil
}

// ParseAssignmentRow validates one assignment directive row
// (participantEmail, mentorEmail). Both emails are lower-cased on read.
func ParseAssignmentRow(row []string) (AssignmentDirective, error) {
	if len(row) < AssignmentFields {
		return AssignmentDirective{}, fmt.Errorf("expected %d fields, got %d", AssignmentFields, len(row))
	}

	participant := NormalizeEmail(row[0])
	mentor := NormalizeEmail(row[1])

	if !ValidEmail(participant) {
		return AssignmentDirective{}, fmt.Errorf("invalid participant email %q", participant)
	}
	if !ValidEmail(mentor) {
		return AssignmentDirective{}, fmt.Errorf("invalid mentor email %q", mentor)
	}

	return AssignmentDirective{ParticipantEmail: participant, MentorEmail: mentor}, nil
}

// SplitSkills splits a skills cell on ';' or '|', trimming whitespace and
// dropping empty tags.
func SplitSkills(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == '|'
	})

	var skills []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			skills = append(skills, p)
		}
	}
	return skills
}

// IsEmptyRow reports whether every cell in the row is blank.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
