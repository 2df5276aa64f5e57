package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyRoles stores the token roles
	ContextKeyRoles ContextKey = "roles"
)

// APIClaims are the JWT claims this service issues and accepts.
type APIClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RequireAuth validates the Bearer token on Authorization and injects the
// subject as the user ID.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims := &APIClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return s.config.GetJWTSigningKey(), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAdmin rejects tokens without the admin role. Chain after
// RequireAuth.
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			roles, ok := r.Context().Value(ContextKeyRoles).([]string)
			if !ok || !slices.Contains(roles, "admin") {
				writeJSONError(w, http.StatusForbidden, "admin access required")
				return
			}
			next(w, r)
		}
	}
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(ContextKeyUserID).(string)
	return userID
}
