package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// requestLog is filled in by inner middleware, which only sees derived
// contexts, and read back by Logging once the handler returns.
type requestLog struct {
	userID         uuid.UUID
	username       string
	organizationID uuid.UUID
}

const requestLogKey contextKey = "request_log"

// noteCaller copies the caller identity stored in ctx into the request log.
func noteCaller(ctx context.Context) {
	if rl, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		rl.userID = GetUserID(ctx)
		rl.username = GetUsername(ctx)
		rl.organizationID = GetOrganizationID(ctx)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			rl := &requestLog{}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogKey, rl)))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"size", wrapped.size,
				"duration", time.Since(start).String(),
				"ip", getClientIP(r),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, "request_id", id)
			}
			if rl.userID != uuid.Nil {
				attrs = append(attrs, "user_id", rl.userID, "username", rl.username)
			}
			if rl.organizationID != uuid.Nil {
				attrs = append(attrs, "organization_id", rl.organizationID)
			}

			level := slog.LevelInfo
			if wrapped.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}
