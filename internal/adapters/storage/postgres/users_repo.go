package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"cmi-tracker/internal/domain/users"

	"github.com/jackc/pgx/v5/pgconn"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

func (r *UsersRepo) Create(ctx context.Context, u users.Usuario) error {
	ejes, err := json.Marshal(u.EjeIDs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO usuarios (id, username, nombre, password, rol, eje_ids, activo, creado)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		u.ID,
		u.Username,
		u.Nombre,
		u.PasswordHash,
		string(u.Rol),
		string(ejes),
		u.Activo,
		u.Creado,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return users.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.Usuario, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (users.Usuario, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UsersRepo) getBy(ctx context.Context, column, value string) (users.Usuario, error) {
	// column es uno de los dos literales de arriba, nunca input externo.
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, nombre, password, rol, eje_ids, activo, creado
		FROM usuarios
		WHERE `+column+` = $1
	`, value)

	u, err := scanUsuario(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.Usuario{}, users.ErrNotFound
		}
		return users.Usuario{}, err
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]users.Usuario, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, nombre, password, rol, eje_ids, activo, creado
		FROM usuarios
		ORDER BY creado, username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]users.Usuario, 0)
	for rows.Next() {
		u, err := scanUsuario(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE usuarios SET password = $1 WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&n)
	return n, err
}

func scanUsuario(scan func(...any) error) (users.Usuario, error) {
	var u users.Usuario
	var rol, ejes string

	if err := scan(
		&u.ID,
		&u.Username,
		&u.Nombre,
		&u.PasswordHash,
		&rol,
		&ejes,
		&u.Activo,
		&u.Creado,
	); err != nil {
		return users.Usuario{}, err
	}

	u.Rol = users.Rol(rol)
	if err := json.Unmarshal([]byte(ejes), &u.EjeIDs); err != nil {
		return users.Usuario{}, err
	}
	return u, nil
}
