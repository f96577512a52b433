package middleware

import (
	"net/http"

	"cmi-tracker/internal/domain/users"
	"cmi-tracker/internal/session"
)

// AuthContext:
// - Si el request trae un cookie de sesión válido, carga el usuario y
//   lo deja en el contexto (users.FromContext).
// - Si no hay sesión, o el usuario ya no existe o está inactivo, el
//   request sigue sin principal; cada handler decide si exige auth.
func AuthContext(sessions *session.Manager, repo users.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, ok := sessions.FromRequest(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			u, err := repo.GetByID(r.Context(), d.UsuarioID)
			if err != nil || !u.Activo {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(users.WithContext(r.Context(), u)))
		})
	}
}
