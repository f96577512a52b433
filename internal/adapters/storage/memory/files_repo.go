package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"cmi-tracker/internal/files"
)

// blobStore implementa files.Store guardando el contenido dentro del
// propio store (variante blob-in-record del backend en memoria).
type blobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewBlobStore() files.Store {
	return &blobStore{blobs: make(map[string][]byte)}
}

func (s *blobStore) Save(ctx context.Context, id string, r io.Reader) error {
	if id == "" {
		return errors.New("storage id required")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = content
	return nil
}

func (s *blobStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.blobs[id]
	if !ok {
		return nil, files.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}
