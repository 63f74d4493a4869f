package logging

import (
	"context"
	"log/slog"
	"strings"
)

// EmitFunc delivers a rendered record to a remote collector.
type EmitFunc func(ctx context.Context, level, message string)

// NewForwardHandler returns a handler that renders each record at or above
// min as "message key=value ..." and hands it to emit. Used by interactive
// clients to surface their own diagnostics in the daemon log.
func NewForwardHandler(emit EmitFunc, min slog.Level) slog.Handler {
	return &forwardHandler{emit: emit, min: min}
}

type forwardHandler struct {
	emit  EmitFunc
	min   slog.Level
	attrs []slog.Attr
	group string
}

func (h *forwardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.emit != nil && level >= h.min
}

func (h *forwardHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.emit == nil {
		return nil
	}
	var b strings.Builder
	b.WriteString(record.Message)
	write := func(attr slog.Attr) {
		if attr.Equal(slog.Attr{}) {
			return
		}
		b.WriteByte(' ')
		b.WriteString(attr.Key)
		b.WriteByte('=')
		b.WriteString(attr.Value.Resolve().String())
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		write(h.qualify(attr))
		return true
	})
	h.emit(ctx, strings.ToLower(record.Level.String()), b.String())
	return nil
}

func (h *forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.qualify(attr))
	}
	return &next
}

func (h *forwardHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group == "" {
		next.group = name
	} else {
		next.group = next.group + "." + name
	}
	return &next
}

func (h *forwardHandler) qualify(attr slog.Attr) slog.Attr {
	if h.group == "" {
		return attr
	}
	attr.Key = h.group + "." + attr.Key
	return attr
}
