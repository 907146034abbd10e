package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/jennys-storefront/internal/auth"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type contextKey string

const UserContextKey contextKey = "user"

const accessTokenCookie = "access_token"

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken reads the bearer token from the Authorization header, then
// from the access_token cookie.
func ExtractToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware rejects requests without a valid token and stores the
// claims in the request context.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, true)
}

// OptionalAuthMiddleware attaches claims when a valid token is present.
// Guests can browse and check out, so a bad token is ignored, not rejected.
func OptionalAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, false)
}

func authenticate(verifier TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				if required {
					respondError(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			switch {
			case err == nil:
				r = r.WithContext(WithUser(r.Context(), claims))
			case required:
				respondError(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole lets through authenticated users holding any of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				respondError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func GetUserID(ctx context.Context) string {
	if claims, ok := GetUserFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}
