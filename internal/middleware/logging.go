package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/josh-kwaku/banking-core/internal/auth"
	"github.com/josh-kwaku/banking-core/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// callerSlot lets ServiceAuth, which runs per route inside the mux, report
// the authenticated caller back to the request log line.
type callerSlot struct {
	service string
}

type callerSlotKey struct{}

func recordCaller(ctx context.Context, service string) {
	if slot, ok := ctx.Value(callerSlotKey{}).(*callerSlot); ok {
		slot.service = service
	}
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		attrs := []any{"request_id", TraceIDFromContext(r.Context())}
		if svc, ok := auth.ServiceFromContext(r.Context()); ok {
			attrs = append(attrs, "caller", svc)
		}

		logger := slog.Default().With(attrs...)
		slot := &callerSlot{}
		ctx := logging.WithLogger(r.Context(), logger)
		ctx = context.WithValue(ctx, callerSlotKey{}, slot)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if slot.service != "" {
			fields = append(fields, "caller", slot.service)
		}

		level := slog.LevelInfo
		switch {
		case rec.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case rec.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "request completed", fields...)
	})
}
