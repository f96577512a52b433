package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/workflow"
)

type WorkflowRepo struct {
	db *sql.DB
}

func NewWorkflowRepo(db *sql.DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

// SubmitEvidence ejecuta la unidad atómica de envío: evidencia +
// upsert de tarea + historial, en una transacción.
func (r *WorkflowRepo) SubmitEvidence(ctx context.Context, ev workflow.Evidencia, t tasks.Tarea, h workflow.Historial) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO evidencias
			(id, tarea_key, usuario_id, descripcion, archivo_orig, archivo_uuid, archivo_mime, enviado_en)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		ev.ID, ev.TareaKey, ev.UsuarioID, ev.Descripcion,
		ev.ArchivoOrig, ev.ArchivoUUID, ev.ArchivoMime, ev.EnviadoEn,
	); err != nil {
		return err
	}

	// Upsert: si la fila existe solo mutan estado y timestamp.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tareas_estado (tarea_key, eje_id, obj_id, year, mes_idx, tarea_idx, estado, actualizado)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (tarea_key) DO UPDATE
		SET estado = EXCLUDED.estado, actualizado = EXCLUDED.actualizado
	`,
		t.Key, t.EjeID, t.ObjID, t.Year, t.MesIdx, t.TareaIdx,
		string(t.Estado), t.Actualizado,
	); err != nil {
		return err
	}

	if err := insertHistorial(ctx, tx, h); err != nil {
		return err
	}

	return tx.Commit()
}

// RecordAudit ejecuta la unidad atómica de auditoría. Si la tarea no
// tiene fila, el UPDATE no toca nada y la transacción entera se
// descarta con ErrNotFound.
func (r *WorkflowRepo) RecordAudit(ctx context.Context, a workflow.Auditoria, estado tasks.Estado, h workflow.Historial) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO auditoria (id, tarea_key, auditor_id, accion, observacion, fecha)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		a.ID, a.TareaKey, a.AuditorID, string(a.Accion), a.Observacion, a.Fecha,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tareas_estado SET estado = $1, actualizado = $2 WHERE tarea_key = $3
	`, string(estado), a.Fecha, a.TareaKey)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return workflow.ErrNotFound
	}

	if err := insertHistorial(ctx, tx, h); err != nil {
		return err
	}

	return tx.Commit()
}

func insertHistorial(ctx context.Context, tx *sql.Tx, h workflow.Historial) error {
	// usuario_id vacío se guarda como NULL (evento sin actor).
	var usuarioID any
	if h.UsuarioID != "" {
		usuarioID = h.UsuarioID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO historial (id, tarea_key, usuario_id, tipo, detalle, fecha)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, h.ID, h.TareaKey, usuarioID, h.Tipo, h.Detalle, h.Fecha)
	return err
}

func (r *WorkflowRepo) GetTarea(ctx context.Context, tareaKey string) (tasks.Tarea, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT tarea_key, eje_id, obj_id, year, mes_idx, tarea_idx, estado, actualizado
		FROM tareas_estado
		WHERE tarea_key = $1
	`, tareaKey)

	t, err := scanTarea(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tasks.Tarea{}, workflow.ErrNotFound
		}
		return tasks.Tarea{}, err
	}
	return t, nil
}

func (r *WorkflowRepo) ListTareas(ctx context.Context, f tasks.ListFilter) ([]tasks.Tarea, error) {
	sb := strings.Builder{}
	sb.WriteString(`
		SELECT tarea_key, eje_id, obj_id, year, mes_idx, tarea_idx, estado, actualizado
		FROM tareas_estado
		WHERE year = $1
	`)

	args := []any{f.Year}
	if f.EjeIDs != nil {
		if len(f.EjeIDs) == 0 {
			return []tasks.Tarea{}, nil
		}
		placeholders := make([]string, 0, len(f.EjeIDs))
		for i, eje := range f.EjeIDs {
			placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
			args = append(args, eje)
		}
		sb.WriteString(" AND eje_id IN (" + strings.Join(placeholders, ",") + ")")
	}
	sb.WriteString(" ORDER BY tarea_key")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tasks.Tarea, 0)
	for rows.Next() {
		t, err := scanTarea(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *WorkflowRepo) ListEvidencias(ctx context.Context, tareaKey string) ([]workflow.EvidenciaDetalle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.tarea_key, e.usuario_id, e.descripcion,
		       e.archivo_orig, e.archivo_uuid, e.archivo_mime, e.enviado_en,
		       u.nombre
		FROM evidencias e
		JOIN usuarios u ON u.id = e.usuario_id
		WHERE e.tarea_key = $1
		ORDER BY e.enviado_en DESC
	`, tareaKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]workflow.EvidenciaDetalle, 0)
	for rows.Next() {
		var e workflow.EvidenciaDetalle
		if err := rows.Scan(
			&e.ID, &e.TareaKey, &e.UsuarioID, &e.Descripcion,
			&e.ArchivoOrig, &e.ArchivoUUID, &e.ArchivoMime, &e.EnviadoEn,
			&e.ResponsableNombre,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *WorkflowRepo) ListAuditorias(ctx context.Context, tareaKey string) ([]workflow.AuditoriaDetalle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.tarea_key, a.auditor_id, a.accion, a.observacion, a.fecha,
		       u.nombre
		FROM auditoria a
		JOIN usuarios u ON u.id = a.auditor_id
		WHERE a.tarea_key = $1
		ORDER BY a.fecha DESC
	`, tareaKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]workflow.AuditoriaDetalle, 0)
	for rows.Next() {
		var a workflow.AuditoriaDetalle
		var accion string
		if err := rows.Scan(
			&a.ID, &a.TareaKey, &a.AuditorID, &accion, &a.Observacion, &a.Fecha,
			&a.AuditorNombre,
		); err != nil {
			return nil, err
		}
		a.Accion = tasks.Estado(accion)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *WorkflowRepo) ListHistorial(ctx context.Context, tareaKey string, limit int) ([]workflow.HistorialDetalle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.tarea_key, h.usuario_id, h.tipo, h.detalle, h.fecha,
		       u.nombre
		FROM historial h
		LEFT JOIN usuarios u ON u.id = h.usuario_id
		WHERE h.tarea_key = $1
		ORDER BY h.fecha DESC
		LIMIT $2
	`, tareaKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]workflow.HistorialDetalle, 0)
	for rows.Next() {
		var h workflow.HistorialDetalle
		var usuarioID, nombre sql.NullString
		if err := rows.Scan(
			&h.ID, &h.TareaKey, &usuarioID, &h.Tipo, &h.Detalle, &h.Fecha,
			&nombre,
		); err != nil {
			return nil, err
		}
		h.UsuarioID = usuarioID.String
		h.UsuarioNombre = nombre.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *WorkflowRepo) GetEvidenciaPorArchivo(ctx context.Context, archivoUUID string) (workflow.Evidencia, error) {
	if strings.TrimSpace(archivoUUID) == "" {
		return workflow.Evidencia{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, tarea_key, usuario_id, descripcion,
		       archivo_orig, archivo_uuid, archivo_mime, enviado_en
		FROM evidencias
		WHERE archivo_uuid = $1
		ORDER BY enviado_en DESC
		LIMIT 1
	`, archivoUUID)

	var e workflow.Evidencia
	if err := row.Scan(
		&e.ID, &e.TareaKey, &e.UsuarioID, &e.Descripcion,
		&e.ArchivoOrig, &e.ArchivoUUID, &e.ArchivoMime, &e.EnviadoEn,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Evidencia{}, workflow.ErrNotFound
		}
		return workflow.Evidencia{}, err
	}
	return e, nil
}

func scanTarea(scan func(...any) error) (tasks.Tarea, error) {
	var t tasks.Tarea
	var estado string

	if err := scan(
		&t.Key, &t.EjeID, &t.ObjID, &t.Year, &t.MesIdx, &t.TareaIdx,
		&estado, &t.Actualizado,
	); err != nil {
		return tasks.Tarea{}, err
	}

	t.Estado = tasks.Estado(estado)
	return t, nil
}
