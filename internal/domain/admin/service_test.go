package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/db/dbtest"
	"github.com/ehr/hms/internal/platform/persistence"
	"github.com/ehr/hms/pkg/pagination"
)

const testSigningKey = "admin-test-signing-key-0123456789abcdef"

func newTestService(t *testing.T) (*Service, *records.Factory) {
	t.Helper()
	f := records.NewFactory(dbtest.NewSQLite(t))
	return NewService(f, auth.NewTokenIssuer([]byte(testSigningKey), "hms", time.Hour)), f
}

func as(principal string) context.Context {
	return persistence.WithPrincipal(context.Background(), principal)
}

func auditOf(t *testing.T, f *records.Factory, entity string, id int64) []persistence.AuditRecord {
	t.Helper()
	ctx := context.Background()
	uow := f.Begin(ctx)
	defer uow.Close(ctx)
	recs, _, err := uow.AuditLogs.Find(ctx, persistence.AuditQuery{EntityName: entity, EntityID: id})
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	return recs
}

var firstPage = pagination.Params{Limit: 20}

// -- Department Tests --

func TestCreateDepartment(t *testing.T) {
	svc, _ := newTestService(t)
	d, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "  Cardiology ", Description: "Heart"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if d.Name != "Cardiology" {
		t.Errorf("expected trimmed name, got %q", d.Name)
	}
	if d.CreatedBy != "alice" {
		t.Errorf("expected createdBy alice, got %q", d.CreatedBy)
	}
}

func TestCreateDepartment_NameRequired(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "   "})
	if !errors.Is(err, persistence.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestCreateDepartment_DuplicateNameIgnoresCase(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Cardiology"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "cardiology"})
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateDepartment_DuplicateNameIgnoresUnicodeCase(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Ärztliche Leitung"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "ärztliche leitung"})
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	items, total, err := svc.ListDepartments(context.Background(), "ÄRZTLICHE", firstPage)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected search to fold non-ASCII case, got %d matches", total)
	}
}

func TestUpdateDepartment(t *testing.T) {
	svc, f := newTestService(t)
	cardio, _ := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Cardiology"})
	if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Neurology"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateDepartment(as("bob"), cardio.ID, DepartmentInput{Name: "NEUROLOGY"}); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict renaming onto another department, got %v", err)
	}

	d, err := svc.UpdateDepartment(as("bob"), cardio.ID, DepartmentInput{Name: "Cardiology", Description: "Heart and vessels"})
	if err != nil {
		t.Fatalf("keeping its own name should be allowed: %v", err)
	}
	if d.ModifiedBy == nil || *d.ModifiedBy != "bob" {
		t.Errorf("expected modifiedBy bob, got %v", d.ModifiedBy)
	}

	recs := auditOf(t, f, "Department", cardio.ID)
	if len(recs) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(recs))
	}
	m := recs[0]
	if m.Action != persistence.ActionModified || len(m.NewValues) != 1 || m.NewValues["description"] != "Heart and vessels" {
		t.Errorf("unexpected modification record: %+v", m)
	}
}

func TestUpdateDepartment_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateDepartment(as("bob"), 99, DepartmentInput{Name: "Anything"})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDepartment_HidesFromEveryRead(t *testing.T) {
	svc, f := newTestService(t)
	cardio, _ := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Cardiology"})
	neuro, _ := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Neurology"})

	if err := svc.DeleteDepartment(as("bob"), cardio.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.GetDepartment(context.Background(), cardio.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound after soft delete, got %v", err)
	}
	items, total, err := svc.ListDepartments(context.Background(), "", firstPage)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != neuro.ID {
		t.Errorf("expected only Neurology, got total=%d items=%v", total, items)
	}

	recs := auditOf(t, f, "Department", cardio.ID)
	if len(recs) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(recs))
	}
	del := recs[0]
	if del.Action != persistence.ActionModified || del.ChangedBy != "bob" {
		t.Errorf("unexpected soft delete record: %+v", del)
	}
	if del.OldValues["isDeleted"] != false || del.NewValues["isDeleted"] != true {
		t.Errorf("expected isDeleted false -> true, got %v -> %v", del.OldValues["isDeleted"], del.NewValues["isDeleted"])
	}

	// The name is free again once the department is gone.
	if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Cardiology"}); err != nil {
		t.Errorf("expected name to be reusable after delete, got %v", err)
	}
}

func TestListDepartments_Search(t *testing.T) {
	svc, _ := newTestService(t)
	for _, name := range []string{"Cardiology", "Neurology", "Pediatrics"} {
		if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	items, total, err := svc.ListDepartments(context.Background(), "LOGY", firstPage)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if items[0].Name != "Cardiology" || items[1].Name != "Neurology" {
		t.Errorf("expected name order, got %s, %s", items[0].Name, items[1].Name)
	}
}

func TestListDepartments_WildcardsMatchLiterally(t *testing.T) {
	svc, _ := newTestService(t)
	for _, name := range []string{"Cardiology", "Neurology", "Day_Care 100%"} {
		if _, err := svc.CreateDepartment(as("alice"), DepartmentInput{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		q    string
		want int
	}{
		{"%", 1},
		{"_", 1},
		{"y_c", 1},
		{"g_", 0},
		{`\`, 0},
	}
	for _, tt := range tests {
		items, total, err := svc.ListDepartments(context.Background(), tt.q, firstPage)
		if err != nil {
			t.Fatalf("q=%q: %v", tt.q, err)
		}
		if total != tt.want || len(items) != tt.want {
			t.Errorf("q=%q: expected %d matches, got %d", tt.q, tt.want, total)
		}
	}
}

func TestPurgeDepartment(t *testing.T) {
	svc, f := newTestService(t)
	cardio, _ := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Cardiology"})
	neuro, _ := svc.CreateDepartment(as("alice"), DepartmentInput{Name: "Neurology"})

	ctx := context.Background()
	uow := f.Begin(ctx)
	uow.Doctors.Add(&records.Doctor{FirstName: "Ahmed", LastName: "Hassan", LicenseNumber: "LIC-1", DepartmentID: neuro.ID})
	if _, err := uow.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	uow.Close(ctx)

	if err := svc.PurgeDepartment(as("admin"), neuro.ID); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict for staffed department, got %v", err)
	}
	if err := svc.PurgeDepartment(as("admin"), cardio.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recs := auditOf(t, f, "Department", cardio.ID)
	if len(recs) != 2 || recs[0].Action != persistence.ActionDeleted || recs[0].OldValues["name"] != "Cardiology" {
		t.Errorf("expected Deleted record with old values, got %+v", recs)
	}
}

// -- Account Tests --

func registerInput(username string) RegisterInput {
	return RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "correct-horse",
		FirstName: "Omar",
		LastName:  "Ibrahim",
	}
}

func TestRegister(t *testing.T) {
	svc, f := newTestService(t)
	sess, err := svc.Register(context.Background(), registerInput("omar"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected a token")
	}
	if sess.User.Role != records.RolePatient {
		t.Errorf("expected Patient role, got %s", sess.User.Role)
	}
	if sess.User.CreatedBy != persistence.SystemPrincipal {
		t.Errorf("expected System as creator, got %s", sess.User.CreatedBy)
	}

	claims, err := auth.ParseToken(sess.Token, auth.JWTConfig{Issuer: "hms", SigningKey: []byte(testSigningKey)})
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.PreferredUsername != "omar" || len(claims.Roles) != 1 || claims.Roles[0] != records.RolePatient {
		t.Errorf("unexpected claims: %+v", claims)
	}

	recs := auditOf(t, f, "User", sess.User.ID)
	if len(recs) != 1 || recs[0].NewValues["passwordHash"] != persistence.RedactedValue {
		t.Errorf("expected redacted password hash in audit, got %+v", recs)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
	}{
		{"missing username", func(in *RegisterInput) { in.Username = "" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput("omar")
			tt.mutate(&in)
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, persistence.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register(context.Background(), registerInput("omar")); err != nil {
		t.Fatal(err)
	}

	sameName := registerInput("OMAR")
	sameName.Email = "other@example.com"
	if _, err := svc.Register(context.Background(), sameName); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict for username, got %v", err)
	}

	sameEmail := registerInput("omar2")
	sameEmail.Email = "Omar@Example.com"
	if _, err := svc.Register(context.Background(), sameEmail); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict for email, got %v", err)
	}
}

func TestRegister_DuplicatesIgnoreUnicodeCase(t *testing.T) {
	svc, _ := newTestService(t)
	in := registerInput("zoë")
	in.Email = "zoë@example.com"
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	sameName := registerInput("ZOË")
	if _, err := svc.Register(context.Background(), sameName); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict for username, got %v", err)
	}

	sameEmail := registerInput("zoe2")
	sameEmail.Email = "ZOË@example.com"
	if _, err := svc.Register(context.Background(), sameEmail); !errors.Is(err, persistence.ErrConflict) {
		t.Errorf("expected ErrConflict for email, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, f := newTestService(t)
	reg, _ := svc.Register(context.Background(), registerInput("omar"))

	sess, err := svc.Login(context.Background(), LoginInput{Username: "omar", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.LastLoginAt == nil {
		t.Fatal("expected lastLoginAt to be set")
	}

	recs := auditOf(t, f, "User", reg.User.ID)
	if len(recs) != 2 {
		t.Fatalf("expected created and login records, got %d", len(recs))
	}
	login := recs[0]
	if login.ChangedBy != "omar" {
		t.Errorf("expected login attributed to omar, got %s", login.ChangedBy)
	}
	if _, ok := login.NewValues["lastLoginAt"]; !ok || len(login.NewValues) != 1 {
		t.Errorf("expected only lastLoginAt to change, got %v", login.NewValues)
	}
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	svc, _ := newTestService(t)
	reg, _ := svc.Register(context.Background(), registerInput("omar"))
	inactive := false
	if _, err := svc.UpdateUser(as("admin"), reg.User.ID, UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(context.Background(), registerInput("sara")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   LoginInput
	}{
		{"unknown user", LoginInput{Username: "nobody", Password: "correct-horse"}},
		{"inactive user", LoginInput{Username: "omar", Password: "correct-horse"}},
		{"wrong password", LoginInput{Username: "sara", Password: "wrong-horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register(context.Background(), registerInput("omar")); err != nil {
		t.Fatal(err)
	}

	err := svc.ChangePassword(as("omar"), "omar", ChangePasswordInput{CurrentPassword: "nope-nope", NewPassword: "battery-staple"})
	if !errors.Is(err, persistence.ErrInvalid) {
		t.Errorf("expected ErrInvalid for wrong current password, got %v", err)
	}

	if err := svc.ChangePassword(as("omar"), "omar", ChangePasswordInput{CurrentPassword: "correct-horse", NewPassword: "battery-staple"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginInput{Username: "omar", Password: "battery-staple"}); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginInput{Username: "omar", Password: "correct-horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected old password to be rejected, got %v", err)
	}
}

func TestUpdateUser_UnknownRole(t *testing.T) {
	svc, _ := newTestService(t)
	reg, _ := svc.Register(context.Background(), registerInput("omar"))
	role := "Janitor"
	if _, err := svc.UpdateUser(as("admin"), reg.User.ID, UserUpdate{Role: &role}); !errors.Is(err, persistence.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestCreateUser_StaffRole(t *testing.T) {
	svc, _ := newTestService(t)
	u, err := svc.CreateUser(as("admin"), registerInput("drhassan"), records.RoleDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != records.RoleDoctor || u.CreatedBy != "admin" {
		t.Errorf("unexpected user: role=%s createdBy=%s", u.Role, u.CreatedBy)
	}
	items, total, err := svc.ListUsers(context.Background(), "hassan", firstPage)
	if err != nil || total != 1 || items[0].ID != u.ID {
		t.Errorf("expected to find the doctor, got total=%d err=%v", total, err)
	}
}

// -- Seed --

func TestSeed_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Seed(context.Background(), "Admin@12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Departments != len(seedDepartments) || !res.AdminCreated {
		t.Errorf("unexpected first seed result: %+v", res)
	}

	res, err = svc.Seed(context.Background(), "Admin@12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Departments != 0 || res.AdminCreated {
		t.Errorf("expected second seed to add nothing, got %+v", res)
	}

	if _, err := svc.Login(context.Background(), LoginInput{Username: SeedAdminUsername, Password: "Admin@12345"}); err != nil {
		t.Errorf("expected seeded admin to log in, got %v", err)
	}
}
