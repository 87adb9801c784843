package httphandler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphgate/graphgate/internal/application"
)

// sessionCookieName is the cookie carrying the web session token.
const sessionCookieName = "graphgate_session"

// stateCookieName is the short-lived cookie pinning the OAuth state nonce
// between the authorize redirect and the callback.
const stateCookieName = "graphgate_oauth_state"

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// credentialFromRequest extracts the request's credential. The session
// cookie wins over a bearer key when both are present, so a browser session
// with a stale Authorization header still resolves to the logged-in user.
// Returns nil when the request carries neither.
func credentialFromRequest(r *http.Request) application.Credential {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return application.SessionCredential{Token: cookie.Value}
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return application.APIKeyCredential{Key: token}
	}

	return nil
}

// sessionTokenFromRequest extracts the session token for session-only
// endpoints. API keys are not accepted there.
func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
