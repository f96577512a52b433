// Package local implementa files.Store sobre un directorio del
// filesystem, un archivo por id opaco.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cmi-tracker/internal/files"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Save(ctx context.Context, id string, r io.Reader) error {
	if !validID(id) {
		return fmt.Errorf("invalid storage id %q", id)
	}

	// Escribir a un temporal y renombrar: los lectores nunca ven un
	// archivo a medias.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(s.dir, id))
}

func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, files.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, files.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// validID rechaza cualquier id con componentes de ruta. Los ids los
// genera el motor (uuid hex + extensión), así que esto solo corta
// entradas manipuladas.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}
