package users

import (
	"context"
	"errors"
)

// Errores que los repositorios devuelven y el servicio traduce.
var (
	ErrNotFound  = errors.New("usuario not found")
	ErrDuplicate = errors.New("username already exists")
)

type Repository interface {
	Create(ctx context.Context, u Usuario) error
	GetByID(ctx context.Context, id string) (Usuario, error)
	GetByUsername(ctx context.Context, username string) (Usuario, error)
	List(ctx context.Context) ([]Usuario, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Count(ctx context.Context) (int, error)
}
