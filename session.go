package slangdict

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"crawshaw.io/sqlite"
	"go.uber.org/zap"
)

const sessionIdCookieName = "id"

// InsecureCookies drops the Secure flag from session cookies, for local
// development over plain http.
var InsecureCookies = false

func (s *UserSession) ToCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionIdCookieName,
		Value:    hex.EncodeToString(s.SessionPublicID),
		Path:     "/",
		Expires:  s.ExpirationTime,
		HttpOnly: true,
		Secure:   !InsecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func SaveSessionInCookie(w http.ResponseWriter, session *UserSession) {
	http.SetCookie(w, session.ToCookie())
}

func ClearSessionCookie(w http.ResponseWriter) {
	cookie := http.Cookie{
		Name:     sessionIdCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !InsecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, &cookie)
}

// SessionPublicIDFromRequest returns nil when there is no session cookie.
func SessionPublicIDFromRequest(r *http.Request) ([]byte, error) {
	cookies := r.CookiesNamed(sessionIdCookieName)
	if len(cookies) == 0 {
		return nil, nil
	}
	if len(cookies) > 1 {
		return nil, fmt.Errorf("expected 1 cookie with name %#v, got %d", sessionIdCookieName, len(cookies))
	}
	return hex.DecodeString(cookies[0].Value)
}

func GetUserIfLoggedIn(conn *sqlite.Conn, r *http.Request) (*User, error) {
	sessionPublicID, err := SessionPublicIDFromRequest(r)
	if err != nil || sessionPublicID == nil {
		return nil, err
	}
	// TODO: extend sessions that are close to expiring
	return GetUserFromSessionPublicID(conn, sessionPublicID)
}

type userCtxKeyType struct{}

var userCtxKey = userCtxKeyType{}

// WithUserContextMiddleware adds the requesting user (if they're logged in) to
// the request context. A malformed cookie counts as logged out.
func WithUserContextMiddleware(db *DB, log *zap.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := db.Get(r.Context())
		if conn == nil {
			http.Error(w, "503 Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		user, err := GetUserIfLoggedIn(conn, r)
		db.Put(conn)
		if err != nil {
			log.Info("ignoring bad session cookie", zap.Error(err))
			user = nil
		}
		ctx := context.WithValue(r.Context(), userCtxKey, user)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentUser is the user stashed on the context by WithUserContextMiddleware,
// or nil if they aren't logged in.
func CurrentUser(ctx context.Context) *User {
	user, ok := ctx.Value(userCtxKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser is for handler tests that skip the middleware.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}
