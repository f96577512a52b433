package workflow

import (
	"time"

	"cmi-tracker/internal/domain/tasks"
)

// Evidencia es una entrega de un responsable contra una tarea.
// Registro append-only: nunca se modifica ni se borra.
type Evidencia struct {
	ID          string
	TareaKey    string
	UsuarioID   string
	Descripcion string

	// Archivo adjunto opcional. ArchivoUUID es el id opaco de
	// almacenamiento; el nombre original queda solo como metadato.
	ArchivoOrig string
	ArchivoUUID string
	ArchivoMime string

	EnviadoEn time.Time
}

// EvidenciaDetalle añade el nombre del responsable (join con usuarios).
type EvidenciaDetalle struct {
	Evidencia
	ResponsableNombre string
}

// Auditoria es el veredicto de un auditor sobre una tarea enviada.
// Append-only.
type Auditoria struct {
	ID          string
	TareaKey    string
	AuditorID   string
	Accion      tasks.Estado // validada | rechazada
	Observacion string
	Fecha       time.Time
}

type AuditoriaDetalle struct {
	Auditoria
	AuditorNombre string
}

// Historial es la traza narrativa de una tarea. Append-only;
// la lectura se acota a los 20 más recientes.
type Historial struct {
	ID        string
	TareaKey  string
	UsuarioID string // vacío = evento sin actor
	Tipo      string
	Detalle   string
	Fecha     time.Time
}

type HistorialDetalle struct {
	Historial
	UsuarioNombre string
}

// Detalle es la vista completa de una tarea.
// Tarea es nil cuando la tarea aún no tiene fila (pendiente implícito).
type Detalle struct {
	Tarea      *tasks.Tarea
	Evidencias []EvidenciaDetalle
	Auditorias []AuditoriaDetalle
	Historial  []HistorialDetalle
}
