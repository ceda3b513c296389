package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/hijo-electricity/hijo/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultConfig()) // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

func TestAdminCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	has, err := s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin: %v", err)
	}
	if has {
		t.Fatal("expected no admins in a fresh store")
	}

	admin := &model.Admin{Username: "hijo", PasswordHash: testHash(t, "secret-pass")}
	if err := s.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetAdminByUsername(ctx, "hijo")
	if err != nil {
		t.Fatalf("GetAdminByUsername: %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("got ID %d, want %d", got.ID, admin.ID)
	}
	if bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("secret-pass")) != nil {
		t.Error("stored hash does not match the password")
	}

	if _, err := s.GetAdmin(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAdmin(999): got %v, want ErrNotFound", err)
	}

	newHash := testHash(t, "another-pass")
	if err := s.UpdateAdminPassword(ctx, admin.ID, newHash); err != nil {
		t.Fatalf("UpdateAdminPassword: %v", err)
	}
	got, _ = s.GetAdmin(ctx, admin.ID)
	if got.PasswordHash != newHash {
		t.Error("password hash was not updated")
	}

	list, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d admins, want 1", len(list))
	}
}

func TestAdminRejectsPlaintextPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateAdmin(ctx, &model.Admin{Username: "plain", PasswordHash: "hunter22"})
	if !errors.Is(err, ErrNotHashed) {
		t.Fatalf("CreateAdmin with plaintext: got %v, want ErrNotHashed", err)
	}

	admin := &model.Admin{Username: "hashed", PasswordHash: testHash(t, "pw")}
	if err := s.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if err := s.UpdateAdminPassword(ctx, admin.ID, "plaintext"); !errors.Is(err, ErrNotHashed) {
		t.Errorf("UpdateAdminPassword with plaintext: got %v, want ErrNotHashed", err)
	}
}

func TestAdminDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAdmin(ctx, &model.Admin{Username: "dup", PasswordHash: testHash(t, "a")}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	err := s.CreateAdmin(ctx, &model.Admin{Username: "dup", PasswordHash: testHash(t, "b")})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second CreateAdmin: got %v, want ErrDuplicate", err)
	}
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &model.Project{TitleEn: "Villa lighting", DescriptionEn: "Smart lighting", Image: "/uploads/projects/a.jpg"}
	second := &model.Project{
		TitleEn:       "Warehouse wiring",
		TitleAr:       strPtr("تمديدات مستودع"),
		DescriptionEn: "Three-phase installation",
		Image:         "/uploads/projects/b.jpg",
	}
	for _, p := range []*model.Project{first, second} {
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}

	list, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d projects, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("list[0].ID = %d, want newest (%d)", list[0].ID, second.ID)
	}

	got, err := s.GetProject(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.TitleAr == nil || *got.TitleAr != "تمديدات مستودع" {
		t.Errorf("TitleAr = %v", got.TitleAr)
	}
	if got.DescriptionAr != nil {
		t.Errorf("DescriptionAr = %q, want nil", *got.DescriptionAr)
	}

	got.TitleEn = "Warehouse rewiring"
	if err := s.UpdateProject(ctx, got); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	// Writing identical values must still find the row.
	if err := s.UpdateProject(ctx, got); err != nil {
		t.Fatalf("UpdateProject (unchanged): %v", err)
	}
	again, _ := s.GetProject(ctx, second.ID)
	if again.TitleEn != "Warehouse rewiring" {
		t.Errorf("TitleEn = %q", again.TitleEn)
	}

	images, err := s.ListProjectImages(ctx)
	if err != nil {
		t.Fatalf("ListProjectImages: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("got %d images, want 2", len(images))
	}

	if err := s.DeleteProject(ctx, first.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if err := s.DeleteProject(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProject: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetProject(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject after delete: got %v, want ErrNotFound", err)
	}
	if err := s.UpdateProject(ctx, &model.Project{ID: 12345, TitleEn: "x", DescriptionEn: "y", Image: "z"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProject missing: got %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

func TestContactCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Contact{Name: "Jon Doe", Email: "jon@example.com", Message: "Hello, I need a quote."}
	if err := s.CreateContact(ctx, c); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	c2 := &model.Contact{Name: "Sara", Email: "sara@example.com", Phone: strPtr("+962790000000"), Message: "Please call me back."}
	if err := s.CreateContact(ctx, c2); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	got, err := s.GetContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.Email != "jon@example.com" || got.Phone != nil {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}

	list, err := s.ListContacts(ctx)
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(list) != 2 || list[0].ID != c2.ID {
		t.Errorf("ListContacts order wrong: %+v", list)
	}

	if err := s.DeleteContact(ctx, c.ID); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if err := s.DeleteContact(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteContact: got %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Error classification and retry
// ---------------------------------------------------------------------------

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"mysql deadlock", &mysqldriver.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysqldriver.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysqldriver.MySQLError{Number: 1062}, false},
		{"postgres deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"), true},
		{"io timeout", fmt.Errorf("query: %w", errors.New("i/o timeout")), true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"context canceled", context.Canceled, false},
		{"syntax error", errors.New("syntax error near SELECT"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	s := newTestStore(t)
	s.cfg.RetryBackoff = 0

	t.Run("retries transient errors up to the limit", func(t *testing.T) {
		calls := 0
		err := s.withRetry(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("connection reset by peer")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("succeeds after a transient failure", func(t *testing.T) {
		calls := 0
		err := s.withRetry(context.Background(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("withRetry: %v", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		_ = s.withRetry(context.Background(), func(ctx context.Context) error {
			calls++
			return ErrNotFound
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestClassifyDuplicate(t *testing.T) {
	for _, err := range []error{
		&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'username'"},
		&pgconn.PgError{Code: "23505"},
		errors.New("constraint failed: UNIQUE constraint failed: admins.username (2067)"),
	} {
		if got := classify(err); !errors.Is(got, ErrDuplicate) {
			t.Errorf("classify(%v) does not wrap ErrDuplicate", err)
		}
	}
	if got := classify(errors.New("boom")); errors.Is(got, ErrDuplicate) {
		t.Error("classify wrapped an unrelated error")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	if _, err := Open(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
