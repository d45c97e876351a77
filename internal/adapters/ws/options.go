package ws

import (
	"time"

	"github.com/okian/storyrank/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithWriteTimeout bounds each write to a connection.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithAllowedOrigins restricts upgrades to the given Origin headers. No
// origins allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		h.allowedOrigins = make(map[string]struct{}, len(origins))
		for _, o := range origins {
			h.allowedOrigins[o] = struct{}{}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
