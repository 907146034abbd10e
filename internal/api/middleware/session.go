package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "cart_session"

	sessionContextKey contextKey = "session"
	sessionCookieAge             = 30 * 24 * 60 * 60
)

// Session resolves the cart session id from the X-Session-ID header or the
// cart_session cookie, issuing a new cookie when neither is present.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				id = cookie.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   sessionCookieAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, id)))
	})
}

func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}
