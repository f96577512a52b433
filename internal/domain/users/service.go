package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials cubre usuario desconocido, inactivo y
	// contraseña incorrecta por igual: la causa no debe distinguirse
	// desde fuera (evita enumerar cuentas).
	ErrInvalidCredentials = errors.New("credenciales incorrectas")

	ErrWeakPassword = errors.New("contraseña mínimo 6 caracteres")
)

const minPasswordLen = 6

// dummyHash se compara cuando el username no existe o está inactivo,
// para que el coste del fallo no revele si la cuenta existe.
// Es el hash bcrypt de una cadena fija que nunca se acepta.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Authenticate busca un usuario activo por username y verifica la
// contraseña contra el hash almacenado.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Usuario, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil || !u.Activo {
		// Comparación ficticia: iguala el coste del camino de fallo.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Usuario{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Usuario{}, ErrInvalidCredentials
	}

	return u, nil
}

type ProvisionInput struct {
	Username string
	Nombre   string
	Password string
	Rol      Rol
	EjeIDs   []string
}

// Provision da de alta un usuario. La contraseña se hashea antes de
// tocar el repositorio; nunca se guarda en claro.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (Usuario, error) {
	username := strings.TrimSpace(in.Username)
	nombre := strings.TrimSpace(in.Nombre)

	if username == "" || nombre == "" || in.Password == "" {
		return Usuario{}, ErrInvalidInput
	}
	if !in.Rol.Valid() {
		return Usuario{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Usuario{}, err
	}

	ejes := in.EjeIDs
	if ejes == nil {
		ejes = []string{}
	}

	u := Usuario{
		ID:           uuid.NewString(),
		Username:     username,
		Nombre:       nombre,
		PasswordHash: string(hash),
		Rol:          in.Rol,
		EjeIDs:       ejes,
		Activo:       true,
		Creado:       s.now(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return Usuario{}, err
	}
	return u, nil
}

// ChangePassword reemplaza la contraseña de un usuario existente.
func (s *Service) ChangePassword(ctx context.Context, id, newPassword string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) GetByID(ctx context.Context, id string) (Usuario, error) {
	return s.repo.GetByID(ctx, id)
}

// List devuelve todos los usuarios. El hash de contraseña viaja en el
// modelo; la proyección HTTP lo excluye.
func (s *Service) List(ctx context.Context) ([]Usuario, error) {
	return s.repo.List(ctx)
}

// Count expone el tamaño del registro (se usa para decidir el seed inicial).
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
