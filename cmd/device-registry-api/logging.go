package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/device-registry-server/internal/config"
)

// loggingEnv reads log_level and log_format from DEVREG_LOG_LEVEL and
// DEVREG_LOG_FORMAT. An unprefixed LOG_LEVEL is still honoured.
func loggingEnv() *viper.Viper {
	v := viper.New()
	_ = v.BindEnv("log_level", config.EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log_format", config.EnvPrefix+"_LOG_FORMAT")
	v.SetDefault("log_format", "json")
	return v
}

// setupLogging installs the default slog logger writing to w
func setupLogging(w io.Writer, v *viper.Viper) {
	level, ok := parseLevel(v.GetString("log_level"))

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if strings.EqualFold(v.GetString("log_format"), "text") {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(spanContextHandler{base}))

	if !ok {
		slog.Warn("Unrecognised log level, using info", "value", v.GetString("log_level"))
	}
}

// parseLevel accepts the slog level names plus "warning". Empty means info.
func parseLevel(s string) (slog.Level, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return slog.LevelInfo, true
	case strings.EqualFold(s, "warning"):
		return slog.LevelWarn, true
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

// spanContextHandler stamps trace_id and span_id on records logged inside a span
type spanContextHandler struct {
	slog.Handler
}

func (h spanContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h spanContextHandler) WithGroup(name string) slog.Handler {
	return spanContextHandler{h.Handler.WithGroup(name)}
}
