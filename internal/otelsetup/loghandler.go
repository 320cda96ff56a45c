// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package otelsetup

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// DefaultTokenKey is the query parameter GitHub accepts an access token in.
const DefaultTokenKey = "access_token"

// Redacted replaces token values in log output.
const Redacted = "REDACTED"

// LogHandler is a slog.Handler used by every ghrest logger. Records logged
// within an active span carry trace.id and span.id. Token query parameters
// in the message or in string, error and URL attributes are replaced with
// REDACTED before the record reaches the next handler.
type LogHandler struct {
	next   slog.Handler
	tokens *regexp.Regexp
}

// NewLogHandler returns a LogHandler forwarding to next. tokenKeys names the
// query parameters to redact; access_token is used when none are given.
func NewLogHandler(next slog.Handler, tokenKeys ...string) *LogHandler {
	quoted := make([]string, 0, len(tokenKeys))
	for _, k := range tokenKeys {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	if len(quoted) == 0 {
		quoted = append(quoted, DefaultTokenKey)
	}
	return &LogHandler{
		next:   next,
		tokens: regexp.MustCompile(`([?&](?:` + strings.Join(quoted, "|") + `)=)[^&#\s"']*`),
	}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(
			slog.String("trace.id", sc.TraceID().String()),
			slog.String("span.id", sc.SpanID().String()),
		)
		if !sc.IsSampled() {
			out.AddAttrs(slog.Bool("trace.sampled", false))
		}
	}
	return h.next.Handle(ctx, out)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &LogHandler{next: h.next.WithAttrs(redacted), tokens: h.tokens}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{next: h.next.WithGroup(name), tokens: h.tokens}
}

func (h *LogHandler) redact(s string) string {
	return h.tokens.ReplaceAllString(s, "${1}"+Redacted)
}

func (h *LogHandler) redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = h.redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, h.redact(x.Error()))
		case *url.URL:
			return slog.String(a.Key, h.redact(x.String()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
