package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cohort/internal/attendance"
	"cohort/internal/batch"
	"cohort/internal/credential"
	"cohort/internal/identity"
	"cohort/internal/importer"
	"cohort/internal/logging"
)

// handleLogin verifies credentials and returns a signed access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode login: %w", err), http.StatusBadRequest)
		return
	}

	id, err := s.idents.FindByEmail(r.Context(), req.Email)
	if err != nil || !id.Active || !credential.Verify(req.Password, id.PasswordHash) {
		// Same response for unknown email and bad password.
		s.respondError(w, r, errors.New("invalid credentials"), http.StatusUnauthorized)
		return
	}

	token, exp, err := s.tokens.Issue(id.Email, id.Role)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("issue token: %w", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
		"role":       id.Role,
	})
}

// handleImport accepts a CSV (multipart "file" field or raw body) and runs
// the pipeline named by the {kind} path segment.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, err := importer.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, http.StatusTooManyRequests)
		return
	}
	defer s.limiter.Release()

	body, err := s.csvBody(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rows, err := importer.ReadRows(body)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	report, err := s.imports.Run(r.Context(), kind, rows)
	s.respondReport(w, r, string(kind), report, err)
}

// csvBody extracts the CSV payload, bounded by the configured size limit.
func (s *Server) csvBody(r *http.Request) (io.Reader, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.Import.MaxFileSize)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
			return nil, fmt.Errorf("parse upload: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		return f, nil
	}
	return r.Body, nil
}

// handleAssign assigns the posted participants to the mentor in the path.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.assignments.Assign)
}

// handleUnassign removes the posted participants from the mentor in the path.
func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.assignments.Unassign)
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, mentor string, participants []string) (*batch.Report, error)) {
	mentor := chi.URLParam(r, "email")

	var req struct {
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	report, err := op(r.Context(), mentor, req.Participants)
	s.respondReport(w, r, "assignment", report, err)
}

// handleUnassigned lists participants with no mentor on either side of the
// relation.
func (s *Server) handleUnassigned(w http.ResponseWriter, r *http.Request) {
	out, err := s.assignments.ListUnassigned(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// handleAssignedList returns the mentor's participant set.
func (s *Server) handleAssignedList(w http.ResponseWriter, r *http.Request) {
	out, err := s.assignments.AssignedTo(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"participants": out})
}

// programDay parses the {date} path segment and checks it falls inside the
// configured program window. The ledger itself accepts any day; this surface
// only marks program days.
func (s *Server) programDay(r *http.Request) (attendance.Day, error) {
	day, err := attendance.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		return "", err
	}
	start, err := s.cfg.Program.Start()
	if err != nil {
		return "", err
	}
	for _, d := range attendance.ProgramDays(start, s.cfg.Program.Days) {
		if d == day {
			return day, nil
		}
	}
	return "", fmt.Errorf("%s is outside the program window", day)
}

// handleMark upserts a single attendance record.
func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	day, err := s.programDay(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Status attendance.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	rec, err := s.attendance.Mark(r.Context(), chi.URLParam(r, "participant"), day, req.Status)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, attendance.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleUnmark removes a single attendance record; removing an unmarked
// pair is still a 204.
func (s *Server) handleUnmark(w http.ResponseWriter, r *http.Request) {
	day, err := attendance.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.attendance.Remove(r.Context(), chi.URLParam(r, "participant"), day); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBulkMark marks attendance for many participants on one day.
func (s *Server) handleBulkMark(w http.ResponseWriter, r *http.Request) {
	day, err := s.programDay(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Entries []attendance.Entry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	report, err := s.attendance.BulkMark(r.Context(), day, req.Entries)
	s.respondReport(w, r, "attendance", report, err)
}

// handleProgramDays returns the configured program day window; UI day
// selectors are built from this list.
func (s *Server) handleProgramDays(w http.ResponseWriter, r *http.Request) {
	start, err := s.cfg.Program.Start()
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"days": attendance.ProgramDays(start, s.cfg.Program.Days),
	})
}

// handleDayList returns every attendance record for one day.
func (s *Server) handleDayList(w http.ResponseWriter, r *http.Request) {
	day, err := attendance.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	recs, err := s.attendance.ForDay(r.Context(), day)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// handleMatrix returns each participant's status across the program window.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	start, err := s.cfg.Program.Start()
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	days := attendance.ProgramDays(start, s.cfg.Program.Days)

	participants, err := s.idents.ListByRole(r.Context(), identity.RoleParticipant)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	emails := make([]string, len(participants))
	for i, p := range participants {
		emails[i] = p.Email
	}

	matrix, err := s.attendance.Matrix(r.Context(), emails, days)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"days": days, "matrix": matrix})
}

// respondReport renders a batch report, distinguishing a fatal batch abort
// (storage-level) from a completed run with per-item failures.
func (s *Server) respondReport(w http.ResponseWriter, r *http.Request, kind string, report *batch.Report, err error) {
	observeReport(kind, report)

	if err != nil {
		logging.FromContext(r.Context()).Error("batch aborted", "kind", kind, "error", err)
		// The partial report still goes to the caller.
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "batch aborted: storage failure",
			"report": report,
		})
		return
	}
	respondJSON(w, http.StatusOK, report)
}
