package users

import (
	"context"
	"errors"
	"testing"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID       map[string]Usuario
	byUsername map[string]string
}

func newTestRepo() *testRepo {
	return &testRepo{
		byID:       map[string]Usuario{},
		byUsername: map[string]string{},
	}
}

func (r *testRepo) Create(ctx context.Context, u Usuario) error {
	if u.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byUsername[u.Username]; ok {
		return ErrDuplicate
	}
	r.byID[u.ID] = u
	r.byUsername[u.Username] = u.ID
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Usuario, error) {
	u, ok := r.byID[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return u, nil
}

func (r *testRepo) GetByUsername(ctx context.Context, username string) (Usuario, error) {
	id, ok := r.byUsername[username]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *testRepo) List(ctx context.Context) ([]Usuario, error) {
	out := make([]Usuario, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out, nil
}

func (r *testRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	r.byID[id] = u
	return nil
}

func (r *testRepo) Count(ctx context.Context) (int, error) {
	return len(r.byID), nil
}

// -------------------------
// Tests
// -------------------------

func TestAuthenticateOK(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestRepo())

	if _, err := svc.Provision(ctx, ProvisionInput{
		Username: "resp_e1",
		Nombre:   "Responsable Eje I",
		Password: "resp2025",
		Rol:      RolResponsable,
		EjeIDs:   []string{"E1"},
	}); err != nil {
		t.Fatalf("provision: %v", err)
	}

	u, err := svc.Authenticate(ctx, "resp_e1", "resp2025")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Rol != RolResponsable || u.Nombre != "Responsable Eje I" {
		t.Fatalf("unexpected usuario: %+v", u)
	}
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewService(repo)

	u, err := svc.Provision(ctx, ProvisionInput{
		Username: "auditor", Nombre: "Auditor", Password: "auditor2025", Rol: RolAuditor,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	// contraseña incorrecta
	if _, err := svc.Authenticate(ctx, "auditor", "mala"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}

	// username desconocido: mismo error, indistinguible
	if _, err := svc.Authenticate(ctx, "desconocido", "auditor2025"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown handle: err = %v, want ErrInvalidCredentials", err)
	}

	// usuario inactivo: mismo error
	stored := repo.byID[u.ID]
	stored.Activo = false
	repo.byID[u.ID] = stored
	if _, err := svc.Authenticate(ctx, "auditor", "auditor2025"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestProvisionHashesPassword(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewService(repo)

	u, err := svc.Provision(ctx, ProvisionInput{
		Username: "director", Nombre: "Dirección", Password: "director2025", Rol: RolDireccion,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "director2025" {
		t.Fatalf("password stored in clear or empty: %q", u.PasswordHash)
	}
}

func TestProvisionDuplicateHandle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewService(repo)

	in := ProvisionInput{Username: "auditor", Nombre: "A", Password: "secreto1", Rol: RolAuditor}
	if _, err := svc.Provision(ctx, in); err != nil {
		t.Fatalf("first provision: %v", err)
	}

	if _, err := svc.Provision(ctx, in); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("registry changed on duplicate: count = %d", n)
	}
}

func TestProvisionRejectsInvalidRol(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Provision(context.Background(), ProvisionInput{
		Username: "x", Nombre: "X", Password: "secreto1", Rol: Rol("gerente"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestRepo())

	u, err := svc.Provision(ctx, ProvisionInput{
		Username: "resp_e2", Nombre: "R", Password: "resp2025", Rol: RolResponsable,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "corta"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: err = %v, want ErrWeakPassword", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "nueva-clave"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "resp_e2", "resp2025"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("old password still works after change")
	}
	if _, err := svc.Authenticate(ctx, "resp_e2", "nueva-clave"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestTieneEje(t *testing.T) {
	u := Usuario{EjeIDs: []string{"E1", "E3"}}
	if !u.TieneEje("E1") || !u.TieneEje("E3") {
		t.Fatal("expected E1/E3 in scope")
	}
	if u.TieneEje("E2") {
		t.Fatal("E2 should be out of scope")
	}

	// Alcance vacío no restringe.
	sinScope := Usuario{}
	if !sinScope.TieneEje("E9") {
		t.Fatal("empty scope should not restrict")
	}
}
