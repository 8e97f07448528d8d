package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"todo-list-backend/internal/identity"
)

type Middleware struct {
	secret         []byte
	allowAnonymous bool
}

func New(secret []byte, allowAnonymous bool) Middleware {
	return Middleware{secret: secret, allowAnonymous: allowAnonymous}
}

// Resolve returns the caller of r. Without an Authorization header the
// caller is anonymous, if that is allowed.
func (m Middleware) Resolve(r *http.Request) (identity.Principal, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		if m.allowAnonymous {
			return identity.Anonymous, nil
		}
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrInvalidToken
	}
	return ParseToken(m.secret, strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := m.Resolve(r)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrMissingToken) {
				msg = "missing token"
			}
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}

		ctx := identity.WithPrincipal(r.Context(), p)
		next(w, r.WithContext(ctx))
	}
}

func (m Middleware) Handler(next http.Handler) http.Handler {
	return m.Wrap(next.ServeHTTP)
}

// WhoAmIHandler returns the principal resolved for the request.
func WhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := identity.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"principal": p,
			"anonymous": p == identity.Anonymous,
		})
	}
}
