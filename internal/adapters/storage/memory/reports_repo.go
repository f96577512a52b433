package memory

import (
	"context"
	"sort"

	"cmi-tracker/internal/domain/reports"
	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/workflow"
)

// reportsRepo lee los datos del WorkflowRepo bajo su mismo mutex.
type reportsRepo struct {
	wf *WorkflowRepo
}

func NewReportsRepo(wf *WorkflowRepo) reports.Repository {
	return &reportsRepo{wf: wf}
}

func (r *reportsRepo) ResumenPorEstado(ctx context.Context, year int) ([]reports.ResumenEstado, error) {
	r.wf.mu.RLock()
	defer r.wf.mu.RUnlock()

	counts := make(map[tasks.Estado]int)
	for _, t := range r.wf.tareas {
		if t.Year == year {
			counts[t.Estado]++
		}
	}

	out := make([]reports.ResumenEstado, 0, len(counts))
	for estado, total := range counts {
		out = append(out, reports.ResumenEstado{Estado: estado, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Estado < out[j].Estado })
	return out, nil
}

func (r *reportsRepo) ResumenPorEje(ctx context.Context, year int) ([]reports.ResumenEje, error) {
	r.wf.mu.RLock()
	defer r.wf.mu.RUnlock()

	porEje := make(map[string]*reports.ResumenEje)
	for _, t := range r.wf.tareas {
		if t.Year != year {
			continue
		}
		e, ok := porEje[t.EjeID]
		if !ok {
			e = &reports.ResumenEje{EjeID: t.EjeID}
			porEje[t.EjeID] = e
		}
		e.Total++
		switch t.Estado {
		case tasks.EstadoValidada:
			e.Validadas++
		case tasks.EstadoEnviada:
			e.Enviadas++
		case tasks.EstadoRechazada:
			e.Rechazadas++
		case tasks.EstadoPendiente:
			e.Pendientes++
		}
	}

	out := make([]reports.ResumenEje, 0, len(porEje))
	for _, e := range porEje {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EjeID < out[j].EjeID })
	return out, nil
}

func (r *reportsRepo) PendientesAuditoria(ctx context.Context, year int) ([]reports.PendienteAuditoria, error) {
	r.wf.mu.RLock()
	defer r.wf.mu.RUnlock()

	out := make([]reports.PendienteAuditoria, 0)
	for _, t := range r.wf.tareas {
		if t.Year != year || t.Estado != tasks.EstadoEnviada {
			continue
		}

		ev, ok := ultimaEvidencia(r.wf.evidencias, t.Key)
		if !ok {
			continue
		}

		out = append(out, reports.PendienteAuditoria{
			Tarea:       t,
			RespNombre:  r.wf.nombreDe(ctx, ev.UsuarioID),
			Descripcion: ev.Descripcion,
			ArchivoOrig: ev.ArchivoOrig,
			ArchivoUUID: ev.ArchivoUUID,
			EnviadoEn:   ev.EnviadoEn,
		})
	}

	// Envío más antiguo primero.
	sort.Slice(out, func(i, j int) bool { return out[i].EnviadoEn.Before(out[j].EnviadoEn) })
	return out, nil
}

func ultimaEvidencia(evidencias []workflow.Evidencia, tareaKey string) (workflow.Evidencia, bool) {
	var best workflow.Evidencia
	found := false
	for _, e := range evidencias {
		if e.TareaKey != tareaKey {
			continue
		}
		if !found || e.EnviadoEn.After(best.EnviadoEn) {
			best = e
			found = true
		}
	}
	return best, found
}
