package reports

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/users"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/api/dashboard", dashboardHandler(svc))
}

type resumenResponse struct {
	Estado tasks.Estado `json:"estado"`
	Total  int          `json:"total"`
}

type porEjeResponse struct {
	EjeID      string `json:"eje_id"`
	Total      int    `json:"total"`
	Validadas  int    `json:"validadas"`
	Enviadas   int    `json:"enviadas"`
	Rechazadas int    `json:"rechazadas"`
	Pendientes int    `json:"pendientes"`
}

type pendienteResponse struct {
	TareaKey    string       `json:"tarea_key"`
	EjeID       string       `json:"eje_id"`
	ObjID       string       `json:"obj_id"`
	Year        int          `json:"year"`
	MesIdx      int          `json:"mes_idx"`
	TareaIdx    int          `json:"tarea_idx"`
	Estado      tasks.Estado `json:"estado"`
	RespNombre  string       `json:"resp_nombre"`
	Descripcion string       `json:"descripcion"`
	ArchivoOrig string       `json:"archivo_orig"`
	ArchivoUUID string       `json:"archivo_uuid"`
	EnviadoEn   time.Time    `json:"enviado_en"`
}

func dashboardHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := users.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}

		year := 2025
		if v := r.URL.Query().Get("year"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "year inválido")
				return
			}
			year = n
		}

		d, err := svc.Dashboard(r.Context(), year)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}

		resumen := make([]resumenResponse, 0, len(d.Resumen))
		for _, s := range d.Resumen {
			resumen = append(resumen, resumenResponse{Estado: s.Estado, Total: s.Total})
		}

		porEje := make([]porEjeResponse, 0, len(d.PorEje))
		for _, e := range d.PorEje {
			porEje = append(porEje, porEjeResponse{
				EjeID:      e.EjeID,
				Total:      e.Total,
				Validadas:  e.Validadas,
				Enviadas:   e.Enviadas,
				Rechazadas: e.Rechazadas,
				Pendientes: e.Pendientes,
			})
		}

		pendientes := make([]pendienteResponse, 0, len(d.Pendientes))
		for _, p := range d.Pendientes {
			pendientes = append(pendientes, pendienteResponse{
				TareaKey:    p.Tarea.Key,
				EjeID:       p.Tarea.EjeID,
				ObjID:       p.Tarea.ObjID,
				Year:        p.Tarea.Year,
				MesIdx:      p.Tarea.MesIdx,
				TareaIdx:    p.Tarea.TareaIdx,
				Estado:      p.Tarea.Estado,
				RespNombre:  p.RespNombre,
				Descripcion: p.Descripcion,
				ArchivoOrig: p.ArchivoOrig,
				ArchivoUUID: p.ArchivoUUID,
				EnviadoEn:   p.EnviadoEn,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"resumen":              resumen,
			"por_eje":              porEje,
			"pendientes_auditoria": pendientes,
		})
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// (users/workflow/reports) para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
