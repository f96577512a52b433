package workflow

import (
	"context"

	"cmi-tracker/internal/domain/tasks"
)

// Repository persiste el conjunto tarea/evidencia/auditoría/historial.
//
// SubmitEvidence y RecordAudit son unidades atómicas: o persisten
// todas sus filas o ninguna, también bajo requests concurrentes sobre
// la misma tarea. RecordAudit devuelve ErrNotFound (y no escribe nada)
// si la tarea no tiene fila en el registro.
type Repository interface {
	SubmitEvidence(ctx context.Context, ev Evidencia, t tasks.Tarea, h Historial) error
	RecordAudit(ctx context.Context, a Auditoria, estado tasks.Estado, h Historial) error

	GetTarea(ctx context.Context, tareaKey string) (tasks.Tarea, error)
	ListTareas(ctx context.Context, f tasks.ListFilter) ([]tasks.Tarea, error)

	// Listados para el detalle de tarea, más reciente primero.
	ListEvidencias(ctx context.Context, tareaKey string) ([]EvidenciaDetalle, error)
	ListAuditorias(ctx context.Context, tareaKey string) ([]AuditoriaDetalle, error)
	ListHistorial(ctx context.Context, tareaKey string, limit int) ([]HistorialDetalle, error)

	GetEvidenciaPorArchivo(ctx context.Context, archivoUUID string) (Evidencia, error)
}
