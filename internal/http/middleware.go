package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"carteira/internal/auth"
	"carteira/internal/core"
)

type contextKey string

const identityKey contextKey = "identity"

// withAuth validates the bearer token through the session authority and
// stores the resulting identity on the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			respondError(w, r, err)
			return
		}

		identity, err := s.authority.Validate(r.Context(), raw)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing Authorization header", core.ErrAuthentication)
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: malformed Authorization header", core.ErrAuthentication)
	}
	return raw, nil
}

// identityFrom returns the authenticated identity stored by withAuth.
func identityFrom(r *http.Request) *auth.Identity {
	identity, _ := r.Context().Value(identityKey).(*auth.Identity)
	return identity
}
