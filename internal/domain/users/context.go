package users

import "context"

type ctxKey string

const principalKey ctxKey = "principal"

// WithContext deja el principal autenticado en el contexto.
// Lo usa el middleware de sesión; los handlers leen con FromContext.
func WithContext(ctx context.Context, u Usuario) context.Context {
	return context.WithValue(ctx, principalKey, u)
}

// FromContext devuelve el usuario autenticado del contexto, si lo hay.
func FromContext(ctx context.Context) (Usuario, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return Usuario{}, false
	}
	u, ok := v.(Usuario)
	return u, ok
}
