// Copyright 2026 © The SkillsLike Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog installs the global slog logger. Records emitted with a
// context carrying an active span are annotated with trace_id and span_id so
// logs correlate with traces.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var base slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base = slog.NewJSONHandler(output, opts)
	} else {
		base = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(&spanHandler{next: base})
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// spanHandler decorates records with the active span's identifiers.
type spanHandler struct {
	next slog.Handler
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			record.AddAttrs(
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name)}
}
