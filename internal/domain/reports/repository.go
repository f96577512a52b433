package reports

import "context"

// Repository es la cara de solo lectura sobre el registro de tareas y
// el log de evidencias.
type Repository interface {
	ResumenPorEstado(ctx context.Context, year int) ([]ResumenEstado, error)
	ResumenPorEje(ctx context.Context, year int) ([]ResumenEje, error)

	// PendientesAuditoria devuelve las tareas "enviada" del año con su
	// evidencia más reciente, ordenadas por envío más antiguo primero
	// (lo que más lleva esperando se revisa antes).
	PendientesAuditoria(ctx context.Context, year int) ([]PendienteAuditoria, error)
}
