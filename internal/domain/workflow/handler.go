package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/users"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes limita el multipart de evidencia (20 MB).
const maxUploadBytes = 20 << 20

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/api/tareas", listTareasHandler(svc))
	r.Get("/api/tareas/{tareaKey}", getTareaHandler(svc))
	r.Post("/api/evidencia", subirEvidenciaHandler(svc))
	r.Get("/api/archivo/{archivoUUID}", descargarArchivoHandler(svc))
	r.Post("/api/auditoria", registrarAuditoriaHandler(svc))
}

type tareaResponse struct {
	TareaKey    string       `json:"tarea_key"`
	EjeID       string       `json:"eje_id"`
	ObjID       string       `json:"obj_id"`
	Year        int          `json:"year"`
	MesIdx      int          `json:"mes_idx"`
	TareaIdx    int          `json:"tarea_idx"`
	Estado      tasks.Estado `json:"estado"`
	Actualizado time.Time    `json:"actualizado"`
}

type evidenciaResponse struct {
	ID                string    `json:"id"`
	TareaKey          string    `json:"tarea_key"`
	UsuarioID         string    `json:"usuario_id"`
	Descripcion       string    `json:"descripcion"`
	ArchivoOrig       string    `json:"archivo_orig"`
	ArchivoUUID       string    `json:"archivo_uuid"`
	ArchivoMime       string    `json:"archivo_mime"`
	EnviadoEn         time.Time `json:"enviado_en"`
	ResponsableNombre string    `json:"responsable_nombre"`
}

type auditoriaResponse struct {
	ID            string       `json:"id"`
	TareaKey      string       `json:"tarea_key"`
	AuditorID     string       `json:"auditor_id"`
	Accion        tasks.Estado `json:"accion"`
	Observacion   string       `json:"observacion"`
	Fecha         time.Time    `json:"fecha"`
	AuditorNombre string       `json:"auditor_nombre"`
}

type historialResponse struct {
	ID        string    `json:"id"`
	TareaKey  string    `json:"tarea_key"`
	UsuarioID string    `json:"usuario_id,omitempty"`
	Tipo      string    `json:"tipo"`
	Detalle   string    `json:"detalle"`
	Fecha     time.Time `json:"fecha"`
	UsrNombre string    `json:"usr_nombre,omitempty"`
}

type auditoriaRequest struct {
	TareaKey    string `json:"tarea_key"`
	Accion      string `json:"accion"`
	Observacion string `json:"observacion"`
}

func listTareasHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := users.FromContext(r.Context())
		if !ok {
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

		items, err := svc.ListTareas(r.Context(), u, year, r.URL.Query().Get("eje"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}

		out := make([]tareaResponse, 0, len(items))
		for _, t := range items {
			out = append(out, toTareaResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getTareaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := users.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}

		d, err := svc.TaskDetail(r.Context(), chi.URLParam(r, "tareaKey"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}

		var estado *tareaResponse
		if d.Tarea != nil {
			t := toTareaResponse(*d.Tarea)
			estado = &t
		}

		evidencias := make([]evidenciaResponse, 0, len(d.Evidencias))
		for _, e := range d.Evidencias {
			evidencias = append(evidencias, evidenciaResponse{
				ID:                e.ID,
				TareaKey:          e.TareaKey,
				UsuarioID:         e.UsuarioID,
				Descripcion:       e.Descripcion,
				ArchivoOrig:       e.ArchivoOrig,
				ArchivoUUID:       e.ArchivoUUID,
				ArchivoMime:       e.ArchivoMime,
				EnviadoEn:         e.EnviadoEn,
				ResponsableNombre: e.ResponsableNombre,
			})
		}

		auditorias := make([]auditoriaResponse, 0, len(d.Auditorias))
		for _, a := range d.Auditorias {
			auditorias = append(auditorias, auditoriaResponse{
				ID:            a.ID,
				TareaKey:      a.TareaKey,
				AuditorID:     a.AuditorID,
				Accion:        a.Accion,
				Observacion:   a.Observacion,
				Fecha:         a.Fecha,
				AuditorNombre: a.AuditorNombre,
			})
		}

		historial := make([]historialResponse, 0, len(d.Historial))
		for _, h := range d.Historial {
			historial = append(historial, historialResponse{
				ID:        h.ID,
				TareaKey:  h.TareaKey,
				UsuarioID: h.UsuarioID,
				Tipo:      h.Tipo,
				Detalle:   h.Detalle,
				Fecha:     h.Fecha,
				UsrNombre: h.UsuarioNombre,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"estado":     estado,
			"evidencias": evidencias,
			"auditorias": auditorias,
			"historial":  historial,
		})
	}
}

func subirEvidenciaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := users.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "formulario multipart inválido")
			return
		}

		in := SubmitInput{
			TareaKey:    r.FormValue("tarea_key"),
			EjeID:       r.FormValue("eje_id"),
			ObjID:       r.FormValue("obj_id"),
			Year:        formInt(r, "year", 2025),
			MesIdx:      formInt(r, "mes_idx", 0),
			TareaIdx:    formInt(r, "tarea_idx", 0),
			Descripcion: r.FormValue("descripcion"),
		}

		if f, fh, err := r.FormFile("archivo"); err == nil {
			defer f.Close()
			in.Archivo = &Upload{
				Filename: fh.Filename,
				Mime:     fh.Header.Get("Content-Type"),
				Content:  f,
			}
		}

		t, err := svc.SubmitEvidence(r.Context(), u, in)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":        true,
				"tarea_key": t.Key,
				"estado":    t.Estado,
			})
		case errors.Is(err, ErrForbidden):
			writeError(w, http.StatusForbidden, "Sin permisos para este eje")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "La descripción es obligatoria")
		default:
			writeError(w, http.StatusInternalServerError, "error interno")
		}
	}
}

func descargarArchivoHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := users.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}

		fd, err := svc.FetchFile(r.Context(), chi.URLParam(r, "archivoUUID"))
		switch {
		case err == nil:
			// sigue abajo
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "Archivo no encontrado")
			return
		default:
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}
		defer fd.Content.Close()

		mime := fd.Mime
		if mime == "" {
			mime = "application/octet-stream"
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fd.Filename))
		_, _ = io.Copy(w, fd.Content)
	}
}

func registrarAuditoriaHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := users.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}

		var req auditoriaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "json inválido")
			return
		}

		estado, err := svc.RecordAudit(r.Context(), u, req.TareaKey, req.Accion, req.Observacion)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "estado": estado})
		case errors.Is(err, ErrForbidden):
			writeError(w, http.StatusForbidden, "Sin permisos")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "Tarea no encontrada")
		default:
			writeError(w, http.StatusInternalServerError, "error interno")
		}
	}
}

func toTareaResponse(t tasks.Tarea) tareaResponse {
	return tareaResponse{
		TareaKey:    t.Key,
		EjeID:       t.EjeID,
		ObjID:       t.ObjID,
		Year:        t.Year,
		MesIdx:      t.MesIdx,
		TareaIdx:    t.TareaIdx,
		Estado:      t.Estado,
		Actualizado: t.Actualizado,
	}
}

func formInt(r *http.Request, name string, def int) int {
	v := r.FormValue(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
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
