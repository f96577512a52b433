package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"cmi-tracker/internal/files"
)

// BlobStore implementa files.Store guardando el contenido como bytea
// en la tabla evidencia_blobs (variante blob-in-record).
type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (s *BlobStore) Save(ctx context.Context, id string, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evidencia_blobs (id, contenido, creado)
		VALUES ($1, $2, $3)
	`, id, content, time.Now())
	return err
}

func (s *BlobStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT contenido FROM evidencia_blobs WHERE id = $1
	`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, files.ErrNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
