package reports

import (
	"time"

	"cmi-tracker/internal/domain/tasks"
)

// ResumenEstado cuenta tareas por estado en un año.
type ResumenEstado struct {
	Estado tasks.Estado
	Total  int
}

// ResumenEje desglosa, por eje, el total de tareas y cada uno de los
// cuatro estados. Las cuatro columnas suman Total.
type ResumenEje struct {
	EjeID      string
	Total      int
	Validadas  int
	Enviadas   int
	Rechazadas int
	Pendientes int
}

// PendienteAuditoria es una tarea en estado "enviada" junto a su
// evidencia más reciente, lista para que un auditor la revise.
type PendienteAuditoria struct {
	Tarea       tasks.Tarea
	RespNombre  string
	Descripcion string
	ArchivoOrig string
	ArchivoUUID string
	EnviadoEn   time.Time
}

// Dashboard es la salida completa del agregador para un año.
type Dashboard struct {
	Resumen    []ResumenEstado
	PorEje     []ResumenEje
	Pendientes []PendienteAuditoria
}
