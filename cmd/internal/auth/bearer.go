package auth

import (
	"net/http"
	"strings"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
// It returns "" for a missing header, another scheme or an empty token.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// hasBearer reports whether r carries a well-formed bearer header.
func hasBearer(r *http.Request) bool { return BearerToken(r) != "" }
