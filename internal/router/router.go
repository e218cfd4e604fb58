package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thriftique/service-account-go/internal/account"
	"github.com/thriftique/service-account-go/internal/account/entity"
	"github.com/thriftique/service-account-go/internal/token"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware validates the bearer token and stores its claims on the
// request context. Missing, malformed and expired tokens all yield 401.
func AuthMiddleware(issuer *token.Issuer) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				jsonError(w, "missing authorization token", http.StatusUnauthorized)
				return
			}
			claims, err := issuer.Validate(raw)
			if err != nil {
				jsonError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(token.NewContext(r.Context(), claims)))
		}
	}
}

// AdminOnly rejects authenticated requests whose token does not carry the
// admin role. Must run inside AuthMiddleware.
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := token.FromContext(r.Context())
		if !ok || claims.Role != string(entity.RoleAdmin) {
			jsonError(w, "Access denied. Admins only.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h *account.Handler, ah *account.AdminHandler, issuer *token.Issuer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auth := AuthMiddleware(issuer)

	// public account surface
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/verify", h.Verify)
	mux.HandleFunc("GET /api/user/{id}", h.PublicProfile)

	// authenticated account surface
	mux.HandleFunc("GET /api/auth/me", auth(h.Me))
	mux.HandleFunc("POST /api/changepassword/{id}", auth(h.ChangePassword))
	mux.HandleFunc("GET /api/profile/{id}", auth(h.Profile))
	mux.HandleFunc("POST /api/profile/{id}", auth(h.UpdateProfile))

	// moderation surface
	mux.HandleFunc("POST /api/admin/accountstatus/{id}", auth(AdminOnly(ah.AccountStatus)))
	mux.HandleFunc("GET /api/admin/account", auth(AdminOnly(ah.List)))
	mux.HandleFunc("POST /api/admin/updateinformation/{id}", auth(AdminOnly(ah.UpdateInformation)))
	mux.HandleFunc("POST /api/admin/deleteaccount/{id}", auth(AdminOnly(ah.Delete)))

	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
