package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/users"
	"cmi-tracker/internal/domain/workflow"
)

// WorkflowRepo guarda tareas, evidencias, auditorías e historial bajo
// un único mutex: cada unidad atómica del motor es una sección crítica.
// Se exporta para que el repo de reportes lea los mismos datos.
type WorkflowRepo struct {
	mu sync.RWMutex

	tareas     map[string]tasks.Tarea
	evidencias []workflow.Evidencia
	auditorias []workflow.Auditoria
	historial  []workflow.Historial

	// usuarios resuelve nombres para los listados con join.
	usuarios users.Repository
}

func NewWorkflowRepo(usuarios users.Repository) *WorkflowRepo {
	return &WorkflowRepo{
		tareas:   make(map[string]tasks.Tarea),
		usuarios: usuarios,
	}
}

func (r *WorkflowRepo) SubmitEvidence(ctx context.Context, ev workflow.Evidencia, t tasks.Tarea, h workflow.Historial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.ID == "" || t.Key == "" {
		return errors.New("evidencia id and tarea key required")
	}

	r.evidencias = append(r.evidencias, ev)

	// Upsert: la identidad de una tarea existente no se toca, solo
	// estado y timestamp.
	if prev, ok := r.tareas[t.Key]; ok {
		prev.Estado = t.Estado
		prev.Actualizado = t.Actualizado
		r.tareas[t.Key] = prev
	} else {
		r.tareas[t.Key] = t
	}

	r.historial = append(r.historial, h)
	return nil
}

func (r *WorkflowRepo) RecordAudit(ctx context.Context, a workflow.Auditoria, estado tasks.Estado, h workflow.Historial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tareas[a.TareaKey]
	if !ok {
		// Sin fila que actualizar: la unidad completa se descarta.
		return workflow.ErrNotFound
	}

	r.auditorias = append(r.auditorias, a)
	t.Estado = estado
	t.Actualizado = a.Fecha
	r.tareas[a.TareaKey] = t
	r.historial = append(r.historial, h)
	return nil
}

func (r *WorkflowRepo) GetTarea(ctx context.Context, tareaKey string) (tasks.Tarea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tareas[tareaKey]
	if !ok {
		return tasks.Tarea{}, workflow.ErrNotFound
	}
	return t, nil
}

func (r *WorkflowRepo) ListTareas(ctx context.Context, f tasks.ListFilter) ([]tasks.Tarea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tasks.Tarea, 0)
	for _, t := range r.tareas {
		if t.Year != f.Year {
			continue
		}
		if f.EjeIDs != nil && !contains(f.EjeIDs, t.EjeID) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *WorkflowRepo) ListEvidencias(ctx context.Context, tareaKey string) ([]workflow.EvidenciaDetalle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]workflow.EvidenciaDetalle, 0)
	for _, e := range r.evidencias {
		if e.TareaKey != tareaKey {
			continue
		}
		out = append(out, workflow.EvidenciaDetalle{
			Evidencia:         e,
			ResponsableNombre: r.nombreDe(ctx, e.UsuarioID),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EnviadoEn.After(out[j].EnviadoEn) })
	return out, nil
}

func (r *WorkflowRepo) ListAuditorias(ctx context.Context, tareaKey string) ([]workflow.AuditoriaDetalle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]workflow.AuditoriaDetalle, 0)
	for _, a := range r.auditorias {
		if a.TareaKey != tareaKey {
			continue
		}
		out = append(out, workflow.AuditoriaDetalle{
			Auditoria:     a,
			AuditorNombre: r.nombreDe(ctx, a.AuditorID),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Fecha.After(out[j].Fecha) })
	return out, nil
}

func (r *WorkflowRepo) ListHistorial(ctx context.Context, tareaKey string, limit int) ([]workflow.HistorialDetalle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]workflow.HistorialDetalle, 0)
	for _, h := range r.historial {
		if h.TareaKey != tareaKey {
			continue
		}
		out = append(out, workflow.HistorialDetalle{
			Historial:     h,
			UsuarioNombre: r.nombreDe(ctx, h.UsuarioID),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Fecha.After(out[j].Fecha) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *WorkflowRepo) GetEvidenciaPorArchivo(ctx context.Context, archivoUUID string) (workflow.Evidencia, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if archivoUUID == "" {
		return workflow.Evidencia{}, workflow.ErrNotFound
	}
	// La más reciente primero, por si un uuid apareciera repetido.
	for i := len(r.evidencias) - 1; i >= 0; i-- {
		if r.evidencias[i].ArchivoUUID == archivoUUID {
			return r.evidencias[i], nil
		}
	}
	return workflow.Evidencia{}, workflow.ErrNotFound
}

// nombreDe tolera usuarios borrados del registro: devuelve vacío.
func (r *WorkflowRepo) nombreDe(ctx context.Context, usuarioID string) string {
	if usuarioID == "" {
		return ""
	}
	u, err := r.usuarios.GetByID(ctx, usuarioID)
	if err != nil {
		return ""
	}
	return u.Nombre
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
