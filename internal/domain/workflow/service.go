package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/users"
	"cmi-tracker/internal/files"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// allowedExt son las extensiones aceptadas como evidencia. Un adjunto
// con otra extensión se descarta en silencio: la evidencia se registra
// igual, sin archivo.
var allowedExt = map[string]bool{
	"pdf": true, "docx": true, "doc": true, "xlsx": true, "xls": true,
	"pptx": true, "png": true, "jpg": true, "jpeg": true, "zip": true,
	"txt": true,
}

// historyLimit acota la lectura del historial por tarea.
const historyLimit = 20

type Service struct {
	repo    Repository
	archivo files.Store
	now     func() time.Time
}

func NewService(repo Repository, archivo files.Store) *Service {
	return &Service{
		repo:    repo,
		archivo: archivo,
		now:     time.Now,
	}
}

// puedeEnviar es el guard de autorización para subir evidencias:
// auditor siempre; responsable solo dentro de su alcance de ejes.
func puedeEnviar(u users.Usuario, ejeID string) error {
	switch u.Rol {
	case users.RolAuditor:
		return nil
	case users.RolResponsable:
		if !u.TieneEje(ejeID) {
			return fmt.Errorf("%w: sin permisos para este eje", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: rol %s no puede subir evidencias", ErrForbidden, u.Rol)
	}
}

// puedeAuditar: solo auditores validan o rechazan.
func puedeAuditar(u users.Usuario) error {
	if u.Rol != users.RolAuditor {
		return fmt.Errorf("%w: se requiere rol auditor", ErrForbidden)
	}
	return nil
}

// Upload es un archivo adjunto entrante.
type Upload struct {
	Filename string
	Mime     string
	Content  io.Reader
}

type SubmitInput struct {
	TareaKey string

	EjeID    string
	ObjID    string
	Year     int
	MesIdx   int
	TareaIdx int

	Descripcion string
	Archivo     *Upload // nil si no hay adjunto
}

// SubmitEvidence registra una evidencia y pasa la tarea a "enviada",
// cree o no la fila del registro. Cualquier estado previo (incluidos
// validada y rechazada) vuelve a "enviada": reenviar reabre la auditoría.
func (s *Service) SubmitEvidence(ctx context.Context, u users.Usuario, in SubmitInput) (tasks.Tarea, error) {
	if err := puedeEnviar(u, in.EjeID); err != nil {
		return tasks.Tarea{}, err
	}

	descripcion := strings.TrimSpace(in.Descripcion)
	if descripcion == "" {
		return tasks.Tarea{}, fmt.Errorf("%w: la descripción es obligatoria", ErrInvalidInput)
	}

	key := strings.TrimSpace(in.TareaKey)
	if key == "" {
		key = tasks.Key{
			EjeID:    in.EjeID,
			ObjID:    in.ObjID,
			Year:     in.Year,
			MesIdx:   in.MesIdx,
			TareaIdx: in.TareaIdx,
		}.String()
	}

	now := s.now()
	ev := Evidencia{
		ID:          uuid.NewString(),
		TareaKey:    key,
		UsuarioID:   u.ID,
		Descripcion: descripcion,
		EnviadoEn:   now,
	}

	if in.Archivo != nil {
		if ext, ok := extensionPermitida(in.Archivo.Filename); ok {
			// Id opaco nuevo por archivo; nunca derivado del nombre
			// original (colisiones, traversal).
			storageID := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
			if err := s.archivo.Save(ctx, storageID, in.Archivo.Content); err != nil {
				return tasks.Tarea{}, err
			}
			ev.ArchivoUUID = storageID
			ev.ArchivoOrig = sanitizeFilename(in.Archivo.Filename)
			ev.ArchivoMime = in.Archivo.Mime
		}
	}

	t := tasks.Tarea{
		Key:         key,
		EjeID:       in.EjeID,
		ObjID:       in.ObjID,
		Year:        in.Year,
		MesIdx:      in.MesIdx,
		TareaIdx:    in.TareaIdx,
		Estado:      tasks.EstadoEnviada,
		Actualizado: now,
	}

	archivoDetalle := ev.ArchivoOrig
	if archivoDetalle == "" {
		archivoDetalle = "ninguno"
	}
	h := Historial{
		ID:        uuid.NewString(),
		TareaKey:  key,
		UsuarioID: u.ID,
		Tipo:      string(tasks.EstadoEnviada),
		Detalle:   fmt.Sprintf("Evidencia subida por %s. Archivo: %s", u.Nombre, archivoDetalle),
		Fecha:     now,
	}

	if err := s.repo.SubmitEvidence(ctx, ev, t, h); err != nil {
		return tasks.Tarea{}, err
	}
	return t, nil
}

// RecordAudit registra el veredicto de un auditor y mueve la tarea a
// validada o rechazada. La tarea debe existir: auditar una tarea sin
// fila es ErrNotFound, no un no-op.
func (s *Service) RecordAudit(ctx context.Context, u users.Usuario, tareaKey, accion, observacion string) (tasks.Estado, error) {
	if err := puedeAuditar(u); err != nil {
		return "", err
	}

	estado := tasks.Estado(accion)
	if estado != tasks.EstadoValidada && estado != tasks.EstadoRechazada {
		return "", fmt.Errorf("%w: acción inválida", ErrInvalidInput)
	}

	observacion = strings.TrimSpace(observacion)
	if estado == tasks.EstadoRechazada && observacion == "" {
		return "", fmt.Errorf("%w: debe indicar el motivo del rechazo", ErrInvalidInput)
	}

	tareaKey = strings.TrimSpace(tareaKey)
	if tareaKey == "" {
		return "", fmt.Errorf("%w: tarea_key requerido", ErrInvalidInput)
	}

	now := s.now()
	a := Auditoria{
		ID:          uuid.NewString(),
		TareaKey:    tareaKey,
		AuditorID:   u.ID,
		Accion:      estado,
		Observacion: observacion,
		Fecha:       now,
	}

	detalle := observacion
	if detalle == "" {
		detalle = "Sin observaciones"
	}
	h := Historial{
		ID:        uuid.NewString(),
		TareaKey:  tareaKey,
		UsuarioID: u.ID,
		Tipo:      string(estado),
		Detalle:   fmt.Sprintf("Auditor %s: %s", u.Nombre, detalle),
		Fecha:     now,
	}

	if err := s.repo.RecordAudit(ctx, a, estado, h); err != nil {
		return "", err
	}
	return estado, nil
}

// TaskDetail arma la vista completa de una tarea: estado, evidencias y
// auditorías con nombres, historial acotado a los 20 más recientes.
func (s *Service) TaskDetail(ctx context.Context, tareaKey string) (Detalle, error) {
	var d Detalle

	t, err := s.repo.GetTarea(ctx, tareaKey)
	switch {
	case err == nil:
		d.Tarea = &t
	case errors.Is(err, ErrNotFound):
		// sin fila: pendiente implícito, estado null en la respuesta
	default:
		return Detalle{}, err
	}

	if d.Evidencias, err = s.repo.ListEvidencias(ctx, tareaKey); err != nil {
		return Detalle{}, err
	}
	if d.Auditorias, err = s.repo.ListAuditorias(ctx, tareaKey); err != nil {
		return Detalle{}, err
	}
	if d.Historial, err = s.repo.ListHistorial(ctx, tareaKey, historyLimit); err != nil {
		return Detalle{}, err
	}
	return d, nil
}

// ListTareas lista el registro para un año. Un responsable con alcance
// de ejes solo ve la intersección entre su alcance y el filtro pedido;
// auditor y dirección ven todos los ejes.
func (s *Service) ListTareas(ctx context.Context, u users.Usuario, year int, eje string) ([]tasks.Tarea, error) {
	f := tasks.ListFilter{Year: year}

	if u.Rol == users.RolResponsable && len(u.EjeIDs) > 0 {
		if eje != "" {
			if !u.TieneEje(eje) {
				return []tasks.Tarea{}, nil
			}
			f.EjeIDs = []string{eje}
		} else {
			f.EjeIDs = u.EjeIDs
		}
	} else if eje != "" {
		f.EjeIDs = []string{eje}
	}

	return s.repo.ListTareas(ctx, f)
}

// FileDownload es un archivo de evidencia listo para servir.
type FileDownload struct {
	Content  io.ReadCloser
	Mime     string
	Filename string
}

// FetchFile recupera un archivo de evidencia por su id opaco.
// El nombre devuelto cae al id si el original nunca se registró.
func (s *Service) FetchFile(ctx context.Context, archivoUUID string) (FileDownload, error) {
	ev, err := s.repo.GetEvidenciaPorArchivo(ctx, archivoUUID)
	if err != nil {
		return FileDownload{}, err
	}
	if ev.ArchivoUUID == "" {
		return FileDownload{}, fmt.Errorf("%w: evidencia sin archivo", ErrNotFound)
	}

	rc, err := s.archivo.Open(ctx, ev.ArchivoUUID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return FileDownload{}, ErrNotFound
		}
		return FileDownload{}, err
	}

	name := ev.ArchivoOrig
	if name == "" {
		name = ev.ArchivoUUID
	}
	return FileDownload{Content: rc, Mime: ev.ArchivoMime, Filename: name}, nil
}

func extensionPermitida(filename string) (string, bool) {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return "", false
	}
	ext := strings.ToLower(filename[i+1:])
	return ext, allowedExt[ext]
}

// sanitizeFilename conserva solo el nombre base, sin componentes de ruta.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
