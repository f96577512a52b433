// Package files define el contrato de almacenamiento binario de
// evidencias. El motor de workflow es agnóstico al backend: disco
// local o blob dentro del propio store durable, elegido por
// configuración.
package files

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("file not found")

// Store guarda y recupera contenido por id opaco de almacenamiento.
// El id lo genera el motor de workflow (nunca deriva del nombre
// original del archivo).
type Store interface {
	// Save persiste el contenido bajo id. No debe dejar escrituras
	// parciales visibles a lectores concurrentes.
	Save(ctx context.Context, id string, r io.Reader) error

	// Open abre el contenido para lectura. ErrNotFound si no existe.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}
