// Package session implementa la sesión de usuario como cookie cifrada
// con AES-256-GCM: sin estado en servidor, el cookie lleva el id del
// usuario autenticado y su fecha de emisión.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	CookieName = "cmi_session"

	// MaxAge de la sesión (24 horas).
	MaxAge = 24 * 60 * 60
)

var ErrInvalidSession = errors.New("invalid session")

// Data es lo único que viaja dentro del cookie.
type Data struct {
	UsuarioID string `json:"usuario_id"`
	Emitida   int64  `json:"emitida"` // Unix timestamp
}

// Manager cifra/descifra Data hacia y desde cookies HTTP.
type Manager struct {
	gcm    cipher.AEAD
	secure bool
	now    func() time.Time
}

// NewManager crea el manager de sesiones.
// key vacía => clave aleatoria (las sesiones no sobreviven reinicios).
// Una key que no sean 32 bytes exactos se normaliza vía SHA-256,
// para poder configurar cualquier string.
func NewManager(key string, secure bool) (*Manager, error) {
	var keyBytes []byte
	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("generating session key: %w", err)
		}
	} else {
		sum := sha256.Sum256([]byte(key))
		keyBytes = sum[:]
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Manager{gcm: gcm, secure: secure, now: time.Now}, nil
}

// Encode cifra Data y devuelve el valor base64url del cookie.
func (m *Manager) Encode(d Data) (string, error) {
	plaintext, err := json.Marshal(d)
	if err != nil {
		return "", err
	}

	// Nonce único por cifrado, antepuesto al ciphertext.
	nonce := make([]byte, m.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := m.gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Decode descifra un valor de cookie. Cualquier manipulación del
// ciphertext hace fallar la autenticación GCM.
func (m *Manager) Decode(encoded string) (Data, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Data{}, ErrInvalidSession
	}
	if len(raw) < m.gcm.NonceSize() {
		return Data{}, ErrInvalidSession
	}

	nonce, ciphertext := raw[:m.gcm.NonceSize()], raw[m.gcm.NonceSize():]
	plaintext, err := m.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Data{}, ErrInvalidSession
	}

	var d Data
	if err := json.Unmarshal(plaintext, &d); err != nil {
		return Data{}, ErrInvalidSession
	}
	if d.UsuarioID == "" {
		return Data{}, ErrInvalidSession
	}
	if m.now().Unix() > d.Emitida+MaxAge {
		return Data{}, ErrInvalidSession
	}
	return d, nil
}

// Issue emite el cookie de sesión para un usuario autenticado.
func (m *Manager) Issue(w http.ResponseWriter, usuarioID string) error {
	value, err := m.Encode(Data{UsuarioID: usuarioID, Emitida: m.now().Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   MaxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear invalida el cookie de sesión.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest extrae y valida la sesión del request, si la hay.
func (m *Manager) FromRequest(r *http.Request) (Data, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Data{}, false
	}
	d, err := m.Decode(c.Value)
	if err != nil {
		return Data{}, false
	}
	return d, true
}
