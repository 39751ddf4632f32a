package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/obs"
)

var errNoToken = errors.New("auth: token missing")

// TokenParser resolves an access token to the owner id it was issued for.
type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// Middleware wires the authenticated owner into the request context.
type Middleware struct {
	Parser       TokenParser
	AccessCookie string
}

// RequireAuth rejects requests without a valid bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if appErr, ok := common.AsAppError(err); ok {
				common.WriteAppError(w, appErr, http.StatusUnauthorized)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Parser == nil {
		return r.Context(), errors.New("auth: parser not configured")
	}
	token := m.extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	owner, err := m.Parser.ParseAccessToken(token)
	if err != nil {
		return r.Context(), err
	}
	obs.SetOwner(r.Context(), owner)
	return common.WithUserID(r.Context(), owner), nil
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}
