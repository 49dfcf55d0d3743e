package logging

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/recipe-app/apiserver/config"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// New builds a logger from cfg. Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return logger
}

// WithLogger stores entry in ctx.
func WithLogger(ctx context.Context, entry logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, entry)
}

// FromContext returns the request-scoped logger, or the standard logger
// outside a request.
func FromContext(ctx context.Context) logrus.FieldLogger {
	if entry, ok := ctx.Value(contextKey{}).(logrus.FieldLogger); ok {
		return entry
	}
	return logrus.StandardLogger()
}

// RequestLogger attaches a request-scoped entry to the context and logs
// one line per request once it completes.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := logrus.Fields{
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"latency":    time.Since(start).String(),
				"remote_ip":  r.RemoteAddr,
				"user_agent": r.UserAgent(),
			}
			switch {
			case status >= http.StatusInternalServerError:
				entry.WithFields(fields).Error("request failed")
			case status >= http.StatusBadRequest:
				entry.WithFields(fields).Warn("request rejected")
			default:
				entry.WithFields(fields).Info("request processed")
			}
		})
	}
}
