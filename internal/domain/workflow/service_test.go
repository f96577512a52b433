package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	mem "cmi-tracker/internal/adapters/storage/memory"
	"cmi-tracker/internal/domain/tasks"
	"cmi-tracker/internal/domain/users"
	"cmi-tracker/internal/domain/workflow"
)

type fixture struct {
	svc  *workflow.Service
	repo *mem.WorkflowRepo

	responsable users.Usuario
	auditor     users.Usuario
	direccion   users.Usuario
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	usersRepo := mem.NewUsersRepo()
	usersSvc := users.NewService(usersRepo)

	resp, err := usersSvc.Provision(ctx, users.ProvisionInput{
		Username: "resp_e1", Nombre: "Responsable Eje I", Password: "resp2025",
		Rol: users.RolResponsable, EjeIDs: []string{"E1"},
	})
	if err != nil {
		t.Fatalf("provision responsable: %v", err)
	}
	aud, err := usersSvc.Provision(ctx, users.ProvisionInput{
		Username: "auditor", Nombre: "Auditor OAC", Password: "auditor2025",
		Rol: users.RolAuditor,
	})
	if err != nil {
		t.Fatalf("provision auditor: %v", err)
	}
	dir, err := usersSvc.Provision(ctx, users.ProvisionInput{
		Username: "director", Nombre: "Dirección", Password: "director2025",
		Rol: users.RolDireccion,
	})
	if err != nil {
		t.Fatalf("provision direccion: %v", err)
	}

	wfRepo := mem.NewWorkflowRepo(usersRepo)
	return &fixture{
		svc:         workflow.NewService(wfRepo, mem.NewBlobStore()),
		repo:        wfRepo,
		responsable: resp,
		auditor:     aud,
		direccion:   dir,
	}
}

func submitInput(descripcion string) workflow.SubmitInput {
	return workflow.SubmitInput{
		TareaKey:    "E1-O1-2025-0-0",
		EjeID:       "E1",
		ObjID:       "O1",
		Year:        2025,
		Descripcion: descripcion,
	}
}

func TestSubmitEvidenceCreatesTaskEnviada(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tarea, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Informe mensual"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tarea.Key != "E1-O1-2025-0-0" {
		t.Fatalf("key = %q", tarea.Key)
	}
	if tarea.Estado != tasks.EstadoEnviada {
		t.Fatalf("estado = %q, want enviada", tarea.Estado)
	}

	d, err := f.svc.TaskDetail(ctx, tarea.Key)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.Tarea == nil || d.Tarea.Estado != tasks.EstadoEnviada {
		t.Fatalf("detail tarea = %+v", d.Tarea)
	}
	if len(d.Evidencias) != 1 {
		t.Fatalf("evidencias = %d, want 1", len(d.Evidencias))
	}
	if d.Evidencias[0].ResponsableNombre != "Responsable Eje I" {
		t.Fatalf("responsable nombre = %q", d.Evidencias[0].ResponsableNombre)
	}
	if len(d.Historial) != 1 {
		t.Fatalf("historial = %d, want 1", len(d.Historial))
	}
	if want := "Evidencia subida por Responsable Eje I. Archivo: ninguno"; d.Historial[0].Detalle != want {
		t.Fatalf("detalle = %q, want %q", d.Historial[0].Detalle, want)
	}
}

func TestSubmitEvidenceDerivesKeyWhenMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := workflow.SubmitInput{
		EjeID: "E1", ObjID: "O2", Year: 2025, MesIdx: 3, TareaIdx: 1,
		Descripcion: "Acta de reunión",
	}
	tarea, err := f.svc.SubmitEvidence(ctx, f.responsable, in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tarea.Key != "E1-O2-2025-3-1" {
		t.Fatalf("derived key = %q, want E1-O2-2025-3-1", tarea.Key)
	}
}

func TestSubmitEvidenceReopensDecidedTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Informe")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.RecordAudit(ctx, f.auditor, "E1-O1-2025-0-0", "rechazada", "Falta firma"); err != nil {
		t.Fatalf("audit: %v", err)
	}

	// Reenviar con la tarea rechazada la devuelve a enviada.
	tarea, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Informe corregido"))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if tarea.Estado != tasks.EstadoEnviada {
		t.Fatalf("estado = %q, want enviada", tarea.Estado)
	}

	// También desde validada.
	if _, err := f.svc.RecordAudit(ctx, f.auditor, "E1-O1-2025-0-0", "validada", ""); err != nil {
		t.Fatalf("audit validada: %v", err)
	}
	tarea, err = f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Anexo"))
	if err != nil {
		t.Fatalf("resubmit after validada: %v", err)
	}
	if tarea.Estado != tasks.EstadoEnviada {
		t.Fatalf("estado = %q, want enviada", tarea.Estado)
	}
}

func TestSubmitEvidenceForbiddenOutsideScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := submitInput("Informe")
	in.TareaKey = "E2-O1-2025-0-0"
	in.EjeID = "E2"

	if _, err := f.svc.SubmitEvidence(ctx, f.responsable, in); !errors.Is(err, workflow.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// El registro queda intacto.
	if _, err := f.repo.GetTarea(ctx, "E2-O1-2025-0-0"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("task was created despite Forbidden: %v", err)
	}
}

func TestSubmitEvidenceDireccionForbidden(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SubmitEvidence(context.Background(), f.direccion, submitInput("Informe")); !errors.Is(err, workflow.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSubmitEvidenceAuditorBypassesScope(t *testing.T) {
	f := newFixture(t)

	in := submitInput("Subsanación cargada por auditoría")
	in.TareaKey = "E4-O1-2025-0-0"
	in.EjeID = "E4"
	if _, err := f.svc.SubmitEvidence(context.Background(), f.auditor, in); err != nil {
		t.Fatalf("auditor submit: %v", err)
	}
}

func TestSubmitEvidenceRequiresDescripcion(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SubmitEvidence(context.Background(), f.responsable, submitInput("   ")); !errors.Is(err, workflow.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSubmitEvidenceWithFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content := []byte("%PDF-1.4 informe")
	in := submitInput("Informe con adjunto")
	in.Archivo = &workflow.Upload{
		Filename: "../planes/Informe Enero.PDF",
		Mime:     "application/pdf",
		Content:  bytes.NewReader(content),
	}

	if _, err := f.svc.SubmitEvidence(ctx, f.responsable, in); err != nil {
		t.Fatalf("submit: %v", err)
	}

	d, err := f.svc.TaskDetail(ctx, "E1-O1-2025-0-0")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	ev := d.Evidencias[0]
	if ev.ArchivoUUID == "" {
		t.Fatal("missing storage id")
	}
	if strings.Contains(ev.ArchivoUUID, "Informe") {
		t.Fatalf("storage id derived from filename: %q", ev.ArchivoUUID)
	}
	if !strings.HasSuffix(ev.ArchivoUUID, ".pdf") {
		t.Fatalf("storage id = %q, want .pdf suffix", ev.ArchivoUUID)
	}
	// El nombre original queda saneado, sin componentes de ruta.
	if ev.ArchivoOrig != "Informe Enero.PDF" {
		t.Fatalf("archivo_orig = %q", ev.ArchivoOrig)
	}

	fd, err := f.svc.FetchFile(ctx, ev.ArchivoUUID)
	if err != nil {
		t.Fatalf("fetch file: %v", err)
	}
	defer fd.Content.Close()

	got, _ := io.ReadAll(fd.Content)
	if !bytes.Equal(got, content) {
		t.Fatalf("content = %q, want %q", got, content)
	}
	if fd.Filename != "Informe Enero.PDF" {
		t.Fatalf("filename = %q", fd.Filename)
	}
	if fd.Mime != "application/pdf" {
		t.Fatalf("mime = %q", fd.Mime)
	}
}

func TestSubmitEvidenceDropsDisallowedExtension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := submitInput("Evidencia con ejecutable")
	in.Archivo = &workflow.Upload{
		Filename: "script.exe",
		Mime:     "application/octet-stream",
		Content:  bytes.NewReader([]byte("MZ")),
	}

	// No es error: la evidencia se registra sin adjunto.
	tarea, err := f.svc.SubmitEvidence(ctx, f.responsable, in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tarea.Estado != tasks.EstadoEnviada {
		t.Fatalf("estado = %q", tarea.Estado)
	}

	d, _ := f.svc.TaskDetail(ctx, tarea.Key)
	if d.Evidencias[0].ArchivoUUID != "" || d.Evidencias[0].ArchivoOrig != "" {
		t.Fatalf("attachment should have been dropped: %+v", d.Evidencias[0])
	}
}

func TestRecordAuditValidada(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Informe")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	estado, err := f.svc.RecordAudit(ctx, f.auditor, "E1-O1-2025-0-0", "validada", "")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if estado != tasks.EstadoValidada {
		t.Fatalf("estado = %q, want validada", estado)
	}

	d, _ := f.svc.TaskDetail(ctx, "E1-O1-2025-0-0")
	if len(d.Auditorias) != 1 {
		t.Fatalf("auditorias = %d, want 1", len(d.Auditorias))
	}
	if d.Auditorias[0].AuditorNombre != "Auditor OAC" {
		t.Fatalf("auditor nombre = %q", d.Auditorias[0].AuditorNombre)
	}
	// Sin observación, el historial usa el texto por defecto.
	if want := "Auditor Auditor OAC: Sin observaciones"; d.Historial[0].Detalle != want {
		t.Fatalf("detalle = %q, want %q", d.Historial[0].Detalle, want)
	}
}

func TestRecordAuditRechazadaRequiresObservacion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput("Informe")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.RecordAudit(ctx, f.auditor, "E1-O1-2025-0-0", "rechazada", "   "); !errors.Is(err, workflow.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	estado, err := f.svc.RecordAudit(ctx, f.auditor, "E1-O1-2025-0-0", "rechazada", "Falta firma")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if estado != tasks.EstadoRechazada {
		t.Fatalf("estado = %q, want rechazada", estado)
	}
}

func TestRecordAuditInvalidAccion(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RecordAudit(context.Background(), f.auditor, "E1-O1-2025-0-0", "aprobada", ""); !errors.Is(err, workflow.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRecordAuditForbiddenForNonAuditors(t *testing.T) {
	f := newFixture(t)

	for _, u := range []users.Usuario{f.responsable, f.direccion} {
		if _, err := f.svc.RecordAudit(context.Background(), u, "E1-O1-2025-0-0", "validada", ""); !errors.Is(err, workflow.ErrForbidden) {
			t.Fatalf("rol %s: err = %v, want ErrForbidden", u.Rol, err)
		}
	}
}

func TestRecordAuditMissingTaskIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Auditar una tarea sin fila no es un no-op silencioso.
	if _, err := f.svc.RecordAudit(ctx, f.auditor, "E9-O9-2025-0-0", "validada", ""); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Y no deja auditoría ni historial colgando.
	d, err := f.svc.TaskDetail(ctx, "E9-O9-2025-0-0")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Auditorias) != 0 || len(d.Historial) != 0 {
		t.Fatalf("partial writes: auditorias=%d historial=%d", len(d.Auditorias), len(d.Historial))
	}
}

func TestTaskDetailHistoryCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 25; i++ {
		if _, err := f.svc.SubmitEvidence(ctx, f.responsable, submitInput(fmt.Sprintf("Entrega %d", i))); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	d, err := f.svc.TaskDetail(ctx, "E1-O1-2025-0-0")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Evidencias) != 25 {
		t.Fatalf("evidencias = %d, want 25", len(d.Evidencias))
	}
	if len(d.Historial) != 20 {
		t.Fatalf("historial = %d, want cap 20", len(d.Historial))
	}
}

func TestTaskDetailUnknownTaskIsPendienteImplicito(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.TaskDetail(context.Background(), "E3-O1-2025-0-0")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.Tarea != nil {
		t.Fatalf("tarea = %+v, want nil", d.Tarea)
	}
	if len(d.Evidencias) != 0 || len(d.Auditorias) != 0 || len(d.Historial) != 0 {
		t.Fatal("expected empty lists for unknown task")
	}
}

func TestListTareasScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// El auditor puebla dos ejes.
	for _, k := range []struct{ key, eje string }{
		{"E1-O1-2025-0-0", "E1"},
		{"E2-O1-2025-0-0", "E2"},
	} {
		in := submitInput("Informe")
		in.TareaKey = k.key
		in.EjeID = k.eje
		if _, err := f.svc.SubmitEvidence(ctx, f.auditor, in); err != nil {
			t.Fatalf("submit %s: %v", k.key, err)
		}
	}

	// Responsable con alcance {E1} solo ve E1.
	got, err := f.svc.ListTareas(ctx, f.responsable, 2025, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].EjeID != "E1" {
		t.Fatalf("responsable sees %+v, want only E1", got)
	}

	// Filtro fuera de su alcance: lista vacía, no error.
	got, err = f.svc.ListTareas(ctx, f.responsable, 2025, "E2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("out-of-scope filter returned %d tareas", len(got))
	}

	// Dirección ve todo; el filtro explícito recorta.
	got, err = f.svc.ListTareas(ctx, f.direccion, 2025, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("direccion sees %d tareas, want 2", len(got))
	}
	got, err = f.svc.ListTareas(ctx, f.direccion, 2025, "E2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].EjeID != "E2" {
		t.Fatalf("filtered direccion sees %+v", got)
	}

	// Otro año: nada.
	got, err = f.svc.ListTareas(ctx, f.direccion, 2026, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("2026 should be empty, got %d", len(got))
	}
}

func TestFetchFileUnknownIsNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.FetchFile(context.Background(), "no-such-id.pdf"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
