package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	svcErr "github.com/cufy/campusmatch/internal/errors"
)

// WriteJSON writes payload with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes the standard {error} envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteServiceError maps a domain error onto its HTTP status and writes
// the envelope. Datastore errors keep their driver message in the body,
// this is an internal/admin tool surface.
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, svcErr.HTTPStatus(err), err.Error())
}

// DecodeJSON decodes a request body into dst, rejecting unknown noise
// softly (unknown fields are ignored, malformed JSON is a 400-style error
// for the caller to surface).
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return svcErr.Validation("invalid JSON body")
	}
	return nil
}

// ActorEmail resolves the authenticated caller from the X-User-Email
// header. Session handling lives in the auth gateway; the contract at
// this boundary is the injected email.
func ActorEmail(r *http.Request) (string, error) {
	email := strings.TrimSpace(r.Header.Get("X-User-Email"))
	if email == "" {
		return "", svcErr.Unauthorized("unauthorized")
	}
	return email, nil
}
