package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"cmi-tracker/internal/domain/users"
)

type usersRepo struct {
	mu         sync.RWMutex
	byID       map[string]users.Usuario
	byUsername map[string]string // username -> id
}

func NewUsersRepo() users.Repository {
	return &usersRepo{
		byID:       make(map[string]users.Usuario),
		byUsername: make(map[string]string),
	}
}

func (r *usersRepo) Create(ctx context.Context, u users.Usuario) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(u.ID) == "" {
		return errors.New("usuario id required")
	}
	if _, exists := r.byUsername[u.Username]; exists {
		return users.ErrDuplicate
	}

	r.byID[u.ID] = u
	r.byUsername[u.Username] = u.ID
	return nil
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (users.Usuario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return users.Usuario{}, users.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (users.Usuario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return users.Usuario{}, users.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *usersRepo) List(ctx context.Context) ([]users.Usuario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]users.Usuario, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}

	// Orden estable: fecha de alta, username como desempate.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Creado.Equal(out[j].Creado) {
			return out[i].Username < out[j].Username
		}
		return out[i].Creado.Before(out[j].Creado)
	})
	return out, nil
}

func (r *usersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.byID[id] = u
	return nil
}

func (r *usersRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}
