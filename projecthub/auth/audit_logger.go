package auth

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AuditLogger writes a JSON trail of authenticated requests and account
// events to a dedicated stream, separate from the application log.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

// Event records an account level action that does not pass through the
// request middleware, such as a failed login attempt.
func (log *AuditLogger) Event(action string, attrs ...any) {
	log.logger.Info(action, attrs...)
}

func callerIp(r *http.Request) string {
	for _, header := range []string{"X-Real-Ip", "X-Forwarded-For"} {
		if ip := r.Header.Get(header); ip != "" {
			return ip
		}
	}
	return r.RemoteAddr
}

func routeInfo(r *http.Request) []any {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key != "*" {
				attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
			}
		}
	}

	if query := r.URL.Query(); len(query) > 0 {
		pairs := make([]any, 0, len(query))
		for k, v := range query {
			pairs = append(pairs, slog.String(k, strings.Join(v, ";")))
		}
		attrs = append(attrs, slog.Group("query", pairs...))
	}

	return attrs
}

// Middleware logs every authenticated request with the acting user, so the
// trail answers who touched which project resource.
func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		attrs := append([]any{
			slog.String("username", user.UserName),
			slog.String("user_id", user.Id.String()),
			slog.String("client_ip", callerIp(r)),
		}, routeInfo(r)...)
		log.logger.Info("request", attrs...)

		next.ServeHTTP(w, r)
	})
}
