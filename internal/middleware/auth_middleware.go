package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

const (
	SessionName    = "auth-session"
	sessionUserKey = "user_id"
)

type contextKey int

const userKey contextKey = iota

// TokenParser validates an API token and returns the user it was issued to.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// AuthMiddleware lets the request through when it carries a session cookie or a valid
// token (Authorization: Bearer, or ?token= for websocket upgrades from browsers).
// The authenticated user id is then available through UserFrom.
func AuthMiddleware(store sessions.Store, tokens TokenParser, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := sessionUser(store, r)
		if userID == "" {
			if token := bearerToken(r); token != "" {
				if id, err := tokens.ParseToken(token); err == nil {
					userID = id
				}
			}
		}
		if userID == "" {
			Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}

func sessionUser(store sessions.Store, r *http.Request) string {
	session, err := store.Get(r, SessionName)
	if err != nil { // Tampered or signed with an old key
		return ""
	}
	id, _ := session.Values[sessionUserKey].(string)
	return id
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Unauthorized writes the 401 envelope.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"status": false, "msg": "Unauthorized"})
}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFrom returns the authenticated user id stored by AuthMiddleware.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey).(string)
	return id, ok && id != ""
}

// StartSession stores userID in the auth cookie.
func StartSession(store sessions.Store, w http.ResponseWriter, r *http.Request, userID string) error {
	session, _ := store.Get(r, SessionName)
	session.Values[sessionUserKey] = userID
	return session.Save(r, w)
}

// EndSession expires the auth cookie.
func EndSession(store sessions.Store, w http.ResponseWriter, r *http.Request) error {
	session, _ := store.Get(r, SessionName)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
