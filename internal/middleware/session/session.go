// Package session keeps the signed session token in a cookie and puts the
// validated auth.Session into the request context.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"splitpay/internal/auth"
)

const CookieName = "splitpay_session"

type contextKey struct{}

// FromContext returns the session of an authenticated request.
func FromContext(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(contextKey{}).(auth.Session)
	return s, ok
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s auth.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// Manager issues, reads and clears the session cookie. Ended sessions are
// remembered in process until their token would have expired anyway.
type Manager struct {
	jwt *auth.JWTManager

	mu    sync.Mutex
	ended map[string]time.Time
	now   func() time.Time
}

func NewManager(jwt *auth.JWTManager) *Manager {
	return &Manager{jwt: jwt, ended: make(map[string]time.Time), now: time.Now}
}

// Start issues a new session cookie on w.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request) (auth.Session, error) {
	token, sess, err := m.jwt.Generate()
	if err != nil {
		return auth.Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// End revokes the session on r, if any, and clears the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) {
	if sess, err := m.Lookup(r); err == nil {
		m.revoke(sess)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// Lookup validates the cookie on r, if any.
func (m *Manager) Lookup(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return auth.Session{}, auth.ErrMissingToken
	}
	sess, err := m.jwt.Validate(c.Value)
	if err != nil {
		return auth.Session{}, err
	}
	m.mu.Lock()
	_, ended := m.ended[sess.ID]
	m.mu.Unlock()
	if ended {
		return auth.Session{}, auth.ErrSessionEnded
	}
	return sess, nil
}

func (m *Manager) revoke(sess auth.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.ended {
		if !exp.After(now) {
			delete(m.ended, id)
		}
	}
	m.ended[sess.ID] = sess.ExpiresAt
}

// Require lets requests with a valid session through and sends the rest to
// loginPath. Non-GET requests get 401 instead of a redirect.
func (m *Manager) Require(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Lookup(r)
			if err != nil {
				slog.DebugContext(r.Context(), "Session rejected", "error", err, "path", r.URL.Path)
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					http.Redirect(w, r, loginPath, http.StatusSeeOther)
					return
				}
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
