package router

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"

	localfiles "cmi-tracker/internal/adapters/files/local"
	mem "cmi-tracker/internal/adapters/storage/memory"
	pg "cmi-tracker/internal/adapters/storage/postgres"
	"cmi-tracker/internal/domain/reports"
	"cmi-tracker/internal/domain/users"
	"cmi-tracker/internal/domain/workflow"
	"cmi-tracker/internal/files"
	"cmi-tracker/internal/middleware"
	"cmi-tracker/internal/platform/logger"
	"cmi-tracker/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const appVersion = "2.0"

type Options struct {
	// Opcional: si viene, usa Postgres. Si no, intenta DB_DSN y cae a
	// in-memory.
	DB *sql.DB

	// SessionKey cifra el cookie de sesión. Vacío = clave aleatoria
	// (sesiones no sobreviven reinicios).
	SessionKey string

	// FileStore permite inyectar el almacenamiento de archivos
	// (tests). Si es nil se elige por FILE_STORE: "blob" guarda el
	// contenido en el store durable, cualquier otro valor usa disco
	// local bajo UPLOAD_DIR.
	FileStore files.Store

	Logger logger.Logger
}

func NewRouter(opts Options) (http.Handler, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err != nil {
				return nil, err
			}
			db = opened
		}
	}

	var (
		usersRepo    users.Repository
		workflowRepo workflow.Repository
		reportsRepo  reports.Repository
		blobStore    files.Store
	)

	if db != nil {
		usersRepo = pg.NewUsersRepo(db)
		workflowRepo = pg.NewWorkflowRepo(db)
		reportsRepo = pg.NewReportsRepo(db)
		blobStore = pg.NewBlobStore(db)
		log.Info("storage backend: postgres", nil)
	} else {
		mu := mem.NewUsersRepo()
		wf := mem.NewWorkflowRepo(mu)
		usersRepo = mu
		workflowRepo = wf
		reportsRepo = mem.NewReportsRepo(wf)
		blobStore = mem.NewBlobStore()
		log.Info("storage backend: memory", nil)
	}

	fileStore := opts.FileStore
	if fileStore == nil {
		if os.Getenv("FILE_STORE") == "blob" {
			fileStore = blobStore
		} else {
			dir := os.Getenv("UPLOAD_DIR")
			if dir == "" {
				dir = "uploads"
			}
			local, err := localfiles.New(dir)
			if err != nil {
				return nil, err
			}
			fileStore = local
		}
	}

	sessionKey := opts.SessionKey
	if sessionKey == "" {
		sessionKey = os.Getenv("SESSION_KEY")
	}
	sessions, err := session.NewManager(sessionKey, false)
	if err != nil {
		return nil, err
	}

	// Services por módulo
	usersSvc := users.NewService(usersRepo)
	workflowSvc := workflow.NewService(workflowRepo, fileStore)
	reportsSvc := reports.NewService(reportsRepo)

	// Cuentas por defecto: siempre en memoria, opt-in con SEED_USERS
	// para Postgres.
	if db == nil || os.Getenv("SEED_USERS") == "1" {
		seedUsuarios(context.Background(), usersSvc, log)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics())
	r.Use(middleware.AuthContext(sessions, usersRepo))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","app":"cmi-tracker","version":"` + appVersion + `"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc, sessions)
	workflow.RegisterRoutes(r, workflowSvc)
	reports.RegisterRoutes(r, reportsSvc)

	return r, nil
}

// seedUsuarios provisiona las cuentas iniciales del programa si el
// registro está vacío: un auditor, dirección y un responsable por eje.
func seedUsuarios(ctx context.Context, svc *users.Service, log logger.Logger) {
	n, err := svc.Count(ctx)
	if err != nil || n > 0 {
		return
	}

	seeds := []users.ProvisionInput{
		{Username: "auditor", Nombre: "Auditor OAC", Password: "auditor2025", Rol: users.RolAuditor},
		{Username: "director", Nombre: "Dirección ESUCAR", Password: "director2025", Rol: users.RolDireccion},
		{Username: "resp_e1", Nombre: "Responsable Eje I", Password: "resp2025", Rol: users.RolResponsable, EjeIDs: []string{"E1"}},
		{Username: "resp_e2", Nombre: "Responsable Eje II", Password: "resp2025", Rol: users.RolResponsable, EjeIDs: []string{"E2"}},
		{Username: "resp_e3", Nombre: "Responsable Eje III", Password: "resp2025", Rol: users.RolResponsable, EjeIDs: []string{"E3"}},
		{Username: "resp_e4", Nombre: "Responsable Eje IV", Password: "resp2025", Rol: users.RolResponsable, EjeIDs: []string{"E4"}},
		{Username: "resp_e5", Nombre: "Responsable Eje V", Password: "resp2025", Rol: users.RolResponsable, EjeIDs: []string{"E5"}},
	}

	for _, in := range seeds {
		if _, err := svc.Provision(ctx, in); err != nil && !errors.Is(err, users.ErrDuplicate) {
			log.Warn("seed usuario failed", map[string]any{"username": in.Username, "err": err.Error()})
		}
	}
	log.Info("usuarios iniciales provisionados", map[string]any{"count": len(seeds)})
}
