package postgres

import (
	"context"
	"database/sql"

	"cmi-tracker/internal/domain/reports"
	"cmi-tracker/internal/domain/tasks"
)

type ReportsRepo struct {
	db *sql.DB
}

func NewReportsRepo(db *sql.DB) *ReportsRepo {
	return &ReportsRepo{db: db}
}

func (r *ReportsRepo) ResumenPorEstado(ctx context.Context, year int) ([]reports.ResumenEstado, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT estado, COUNT(*)
		FROM tareas_estado
		WHERE year = $1
		GROUP BY estado
		ORDER BY estado
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reports.ResumenEstado, 0)
	for rows.Next() {
		var estado string
		var total int
		if err := rows.Scan(&estado, &total); err != nil {
			return nil, err
		}
		out = append(out, reports.ResumenEstado{Estado: tasks.Estado(estado), Total: total})
	}
	return out, rows.Err()
}

func (r *ReportsRepo) ResumenPorEje(ctx context.Context, year int) ([]reports.ResumenEje, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT eje_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE estado = 'validada'),
		       COUNT(*) FILTER (WHERE estado = 'enviada'),
		       COUNT(*) FILTER (WHERE estado = 'rechazada'),
		       COUNT(*) FILTER (WHERE estado = 'pendiente')
		FROM tareas_estado
		WHERE year = $1
		GROUP BY eje_id
		ORDER BY eje_id
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reports.ResumenEje, 0)
	for rows.Next() {
		var e reports.ResumenEje
		if err := rows.Scan(&e.EjeID, &e.Total, &e.Validadas, &e.Enviadas, &e.Rechazadas, &e.Pendientes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ReportsRepo) PendientesAuditoria(ctx context.Context, year int) ([]reports.PendienteAuditoria, error) {
	// Una fila por tarea: su evidencia más reciente (LATERAL + LIMIT 1),
	// ordenadas por envío más antiguo primero.
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.tarea_key, t.eje_id, t.obj_id, t.year, t.mes_idx, t.tarea_idx,
		       t.estado, t.actualizado,
		       u.nombre, e.descripcion, e.archivo_orig, e.archivo_uuid, e.enviado_en
		FROM tareas_estado t
		JOIN LATERAL (
			SELECT usuario_id, descripcion, archivo_orig, archivo_uuid, enviado_en
			FROM evidencias
			WHERE tarea_key = t.tarea_key
			ORDER BY enviado_en DESC
			LIMIT 1
		) e ON TRUE
		JOIN usuarios u ON u.id = e.usuario_id
		WHERE t.estado = 'enviada' AND t.year = $1
		ORDER BY e.enviado_en ASC
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reports.PendienteAuditoria, 0)
	for rows.Next() {
		var p reports.PendienteAuditoria
		var estado string
		if err := rows.Scan(
			&p.Tarea.Key, &p.Tarea.EjeID, &p.Tarea.ObjID, &p.Tarea.Year,
			&p.Tarea.MesIdx, &p.Tarea.TareaIdx, &estado, &p.Tarea.Actualizado,
			&p.RespNombre, &p.Descripcion, &p.ArchivoOrig, &p.ArchivoUUID, &p.EnviadoEn,
		); err != nil {
			return nil, err
		}
		p.Tarea.Estado = tasks.Estado(estado)
		out = append(out, p)
	}
	return out, rows.Err()
}
