package cmd

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler writes every record to all handlers that accept its level.
type fanoutHandler struct {
	level    slog.Leveler
	handlers []slog.Handler
}

func newFanoutHandler(level slog.Leveler, handlers ...slog.Handler) slog.Handler {
	return &fanoutHandler{level: level, handlers: handlers}
}

func (f *fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l < f.level.Level() {
		return false
	}
	for _, h := range f.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{level: f.level, handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{level: f.level, handlers: next}
}
