package users

import "time"

// Rol define los roles soportados.
// @Enum responsable, auditor, direccion
type Rol string

const (
	RolResponsable Rol = "responsable"
	RolAuditor     Rol = "auditor"
	RolDireccion   Rol = "direccion"
)

func (r Rol) Valid() bool {
	switch r {
	case RolResponsable, RolAuditor, RolDireccion:
		return true
	}
	return false
}

// Usuario representa un principal del sistema: responsable, auditor
// o dirección, con su alcance de ejes.
type Usuario struct {
	ID       string
	Username string
	Nombre   string

	// PasswordHash es el hash bcrypt de la contraseña.
	// Nunca se expone en respuestas ni en logs.
	PasswordHash string

	Rol Rol

	// EjeIDs restringe a qué ejes puede subir un responsable.
	// Vacío = sin restricción.
	EjeIDs []string

	Activo bool
	Creado time.Time
}

// TieneEje indica si el usuario puede actuar sobre el eje dado.
// Un alcance vacío no restringe.
func (u Usuario) TieneEje(ejeID string) bool {
	if len(u.EjeIDs) == 0 {
		return true
	}
	for _, e := range u.EjeIDs {
		if e == ejeID {
			return true
		}
	}
	return false
}
