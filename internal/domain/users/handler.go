package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cmi-tracker/internal/session"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, sessions *session.Manager) {
	r.Post("/api/login", loginHandler(svc, sessions))
	r.Post("/api/logout", logoutHandler(sessions))
	r.Get("/api/me", meHandler())

	// Gestión de usuarios (auditor; dirección solo lectura)
	r.Get("/api/usuarios", listUsuariosHandler(svc))
	r.Post("/api/usuarios", crearUsuarioHandler(svc))
	r.Put("/api/usuarios/{id}/password", cambiarPasswordHandler(svc))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// usuarioPublico es la proyección sin credenciales.
type usuarioPublico struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Nombre   string    `json:"nombre"`
	Rol      Rol       `json:"rol"`
	EjeIDs   []string  `json:"eje_ids"`
	Activo   bool      `json:"activo"`
	Creado   time.Time `json:"creado"`
}

type loginUsuario struct {
	ID     string   `json:"id"`
	Nombre string   `json:"nombre"`
	Rol    Rol      `json:"rol"`
	EjeIDs []string `json:"eje_ids"`
}

type crearUsuarioRequest struct {
	Username string   `json:"username"`
	Nombre   string   `json:"nombre"`
	Password string   `json:"password"`
	Rol      string   `json:"rol"`
	EjeIDs   []string `json:"eje_ids"`
}

type cambiarPasswordRequest struct {
	Password string `json:"password"`
}

func loginHandler(svc *Service, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "json inválido")
			return
		}

		u, err := svc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"ok":    false,
				"error": "Credenciales incorrectas",
			})
			return
		}

		if err := sessions.Issue(w, u.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
			"usuario": loginUsuario{
				ID:     u.ID,
				Nombre: u.Nombre,
				Rol:    u.Rol,
				EjeIDs: u.EjeIDs,
			},
		})
	}
}

func logoutHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Clear(w)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}
		writeJSON(w, http.StatusOK, toPublico(u))
	}
}

func listUsuariosHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRol(w, r, RolAuditor, RolDireccion); !ok {
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}

		out := make([]usuarioPublico, 0, len(items))
		for _, u := range items {
			out = append(out, toPublico(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func crearUsuarioHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRol(w, r, RolAuditor); !ok {
			return
		}

		var req crearUsuarioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "json inválido")
			return
		}

		_, err := svc.Provision(r.Context(), ProvisionInput{
			Username: req.Username,
			Nombre:   req.Nombre,
			Password: req.Password,
			Rol:      Rol(req.Rol),
			EjeIDs:   req.EjeIDs,
		})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case errors.Is(err, ErrDuplicate):
			writeError(w, http.StatusConflict, "El usuario ya existe")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "Campos requeridos: username, nombre, password, rol")
		default:
			writeError(w, http.StatusInternalServerError, "error interno")
		}
	}
}

func cambiarPasswordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireRol(w, r, RolAuditor); !ok {
			return
		}

		var req cambiarPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "json inválido")
			return
		}

		err := svc.ChangePassword(r.Context(), chi.URLParam(r, "id"), req.Password)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case errors.Is(err, ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "Contraseña mínimo 6 caracteres")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "Usuario no encontrado")
		case errors.Is(err, ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "id requerido")
		default:
			writeError(w, http.StatusInternalServerError, "error interno")
		}
	}
}

// requireRol exige principal autenticado con uno de los roles dados.
// Escribe 401/403 y devuelve ok=false si no se cumple.
func requireRol(w http.ResponseWriter, r *http.Request, roles ...Rol) (Usuario, bool) {
	u, ok := FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado")
		return Usuario{}, false
	}
	for _, rol := range roles {
		if u.Rol == rol {
			return u, true
		}
	}
	writeError(w, http.StatusForbidden, "Sin permisos")
	return Usuario{}, false
}

func toPublico(u Usuario) usuarioPublico {
	ejes := u.EjeIDs
	if ejes == nil {
		ejes = []string{}
	}
	return usuarioPublico{
		ID:       u.ID,
		Username: u.Username,
		Nombre:   u.Nombre,
		Rol:      u.Rol,
		EjeIDs:   ejes,
		Activo:   u.Activo,
		Creado:   u.Creado,
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
