package registry

import "log/slog"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the queue capacity of every subscriber created by the Hub.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithLogger attaches a component-scoped logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger.With(slog.String("component", "hub"))
		}
	}
}
