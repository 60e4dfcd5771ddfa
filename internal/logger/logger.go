// Package logger builds the process logger and request-scoped entries.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// New returns a JSON logger at the given level. Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// FromContext returns an entry tagged with the request id and trace id found in ctx.
func FromContext(ctx context.Context, log logrus.FieldLogger) *logrus.Entry {
	entry := log.WithFields(logrus.Fields{})
	if ctx == nil {
		return entry
	}
	entry = entry.WithContext(ctx)
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		entry = entry.WithField("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	return entry
}

// Discard is a logger for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
