package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// permanentTokenBytes yields 40 hex characters.
const permanentTokenBytes = 20

// NewPermanentToken generates a random opaque token.
func NewPermanentToken() (string, error) {
	b := make([]byte, permanentTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ExtractToken reads the credential from an Authorization header value of the
// form "Bearer <token>" or just "<token>".
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return header
}

// TokenFromRequest reads the credential from the Authorization header, falling
// back to the "token" query parameter for clients that cannot set headers
// (browser websockets).
func TokenFromRequest(r *http.Request) string {
	if tok := ExtractToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}
