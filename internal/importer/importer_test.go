package importer

import (
	"context"
	"strings"
	"testing"

	"cohort/internal/assignment"
	"cohort/internal/identity"
)

// fakeStore is an in-memory identity store keyed by normalized email.
type fakeStore struct {
	idents  map[string]*identity.Identity
	creates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{idents: make(map[string]*identity.Identity)}
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	id, ok := f.idents[email]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) Create(_ context.Context, id *identity.Identity) error {
	if _, ok := f.idents[id.Email]; ok {
		return identity.ErrDuplicate
	}
	f.idents[id.Email] = id
	f.creates++
	return nil
}

func TestReadRows(t *testing.T) {
	in := "email,name,collegeName,mobile\n" +
		"a@x.com,Asha,State College,9876543210\n" +
		"b@x.com,\"Rao, Bina\",Tech Institute,9123456780\n"

	rows, err := ReadRows(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[2][1] != "Rao, Bina" {
		t.Errorf("quoted field = %q", rows[2][1])
	}
}

func TestReadRowsRagged(t *testing.T) {
	// Ragged field counts parse; shape is a per-row validation concern.
	rows, err := ReadRows(strings.NewReader("a,b,c\nx,y\np,q,r,s\n"))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
}

func TestImportParticipantsRerun(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	rows := [][]string{
		{"email", "name", "collegeName", "mobile"},
		{"a@x.com", "Asha", "State College", "9876543210"},
		{"b@x.com", "Bina", "Tech Institute", "9123456780"},
	}

	report, err := svc.ImportParticipants(context.Background(), rows)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Fatalf("first report = %+v", report)
	}

	// Re-running the same file creates nothing and reports only skips.
	report, err = svc.ImportParticipants(context.Background(), rows)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if report.Succeeded != 0 || report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("second report = %+v", report)
	}
	if store.creates != 2 {
		t.Errorf("creates = %d, want 2", store.creates)
	}
	for _, f := range report.Failures {
		if f.Reason != "already registered" {
			t.Errorf("skip reason = %q", f.Reason)
		}
	}
}

func TestImportParticipantsRowIsolation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	rows := [][]string{
		{"email", "name", "collegeName", "mobile"},
		{"a@x.com", "Asha", "State College", "9876543210"},
		{"not-an-email", "Borked", "Nowhere", "9123456780"},
		{"", "", "", ""},
		{"c@x.com", "Chitra", "City College", "9000000001"},
	}

	report, err := svc.ImportParticipants(context.Background(), rows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Total != 4 || report.Succeeded != 2 || report.Skipped != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if _, ok := store.idents["c@x.com"]; !ok {
		t.Error("row after the bad ones was not processed")
	}

	// The empty row is labelled by line number, there being no email.
	found := false
	for _, f := range report.Failures {
		if f.Identifier == "line 4" && f.Reason == "empty row" {
			found = true
		}
	}
	if !found {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestImportParticipantsProvisionsCredential(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	rows := [][]string{
		{"email", "name", "collegeName", "mobile"},
		{"a@x.com", "Asha", "State College", "9876543210"},
	}

	if _, err := svc.ImportParticipants(context.Background(), rows); err != nil {
		t.Fatalf("import: %v", err)
	}
	id := store.idents["a@x.com"]
	if id == nil {
		t.Fatal("identity not created")
	}
	if id.PasswordHash == "" || id.PasswordHash == "9876543210" {
		t.Errorf("credential stored unhashed: %q", id.PasswordHash)
	}
	if id.Role != identity.RoleParticipant || !id.Active {
		t.Errorf("identity = %+v", id)
	}
}

func TestImportMentors(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	rows := [][]string{
		{"name", "mobile", "email", "description", "skills"},
		{"Meera", "9876543210", "m@y.com", "Backend mentor", "go;sql"},
	}

	report, err := svc.ImportMentors(context.Background(), rows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
	id := store.idents["m@y.com"]
	if id == nil || id.Role != identity.RoleMentor {
		t.Fatalf("identity = %+v", id)
	}
	if len(id.Skills) != 2 || id.Skills[0] != "go" || id.Skills[1] != "sql" {
		t.Errorf("skills = %v", id.Skills)
	}
}

// assignStore adds the relation methods the assignment ledger needs on top
// of the identity fake.
type assignStore struct {
	*fakeStore
	pairs map[string]string
}

func (a *assignStore) ListByRole(_ context.Context, role identity.Role) ([]identity.Identity, error) {
	var out []identity.Identity
	for _, id := range a.idents {
		if id.Role == role {
			out = append(out, *id)
		}
	}
	return out, nil
}

func (a *assignStore) Link(_ context.Context, mentor, participant string) error {
	a.pairs[participant] = mentor
	a.idents[participant].AssignedMentor = mentor
	return nil
}

func (a *assignStore) Unlink(_ context.Context, mentor, participant string) error {
	if a.pairs[participant] == mentor {
		delete(a.pairs, participant)
		a.idents[participant].AssignedMentor = ""
	}
	return nil
}

func (a *assignStore) MentorOf(_ context.Context, participant string) (string, error) {
	id, ok := a.idents[participant]
	if !ok {
		return "", identity.ErrNotFound
	}
	return id.AssignedMentor, nil
}

func (a *assignStore) AssignedTo(_ context.Context, mentor string) ([]string, error) {
	var out []string
	for p, m := range a.pairs {
		if m == mentor {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a *assignStore) AssignedPairs(_ context.Context) (map[string]string, error) {
	return a.pairs, nil
}

func (a *assignStore) SetMentorRef(_ context.Context, participant, mentor string) error {
	a.idents[participant].AssignedMentor = mentor
	return nil
}

func (a *assignStore) InsertPair(_ context.Context, mentor, participant string) error {
	a.pairs[participant] = mentor
	return nil
}

func (a *assignStore) DeletePair(_ context.Context, mentor, participant string) error {
	if a.pairs[participant] == mentor {
		delete(a.pairs, participant)
	}
	return nil
}

func TestImportAssignments(t *testing.T) {
	store := &assignStore{fakeStore: newFakeStore(), pairs: make(map[string]string)}
	store.idents["p@x.com"] = &identity.Identity{Email: "p@x.com", Role: identity.RoleParticipant, Active: true}
	store.idents["m@y.com"] = &identity.Identity{Email: "m@y.com", Role: identity.RoleMentor, Active: true}

	svc := NewService(store, assignment.NewLedger(store))
	rows := [][]string{
		{"participantEmail", "mentorEmail"},
		{"p@x.com", "m@y.com"},
		{"ghost@x.com", "m@y.com"},
	}

	report, err := svc.ImportAssignments(context.Background(), rows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if store.pairs["p@x.com"] != "m@y.com" {
		t.Error("directive not applied")
	}
}

func TestImportAssignmentsNoLedger(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	if _, err := svc.ImportAssignments(context.Background(), [][]string{{"a", "b"}}); err == nil {
		t.Error("expected error without a ledger")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"participants", KindParticipants, false},
		{" Mentors ", KindMentors, false},
		{"assignments", KindAssignments, false},
		{"students", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseKind(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseKind(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunDispatch(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	report, err := svc.Run(context.Background(), KindParticipants, [][]string{
		{"email", "name", "collegeName", "mobile"},
		{"a@x.com", "Asha", "State College", "9876543210"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}

	if _, err := svc.Run(context.Background(), Kind("bogus"), nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}
