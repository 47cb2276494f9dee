package render

import (
	"log/slog"
	"time"
)

// Option customises a Renderer.
type Option func(*Renderer)

// Observer is notified once per render with its outcome.
type Observer func(name string, elapsed time.Duration, err error)

// WithSanitizer filters every rendered output through s.
func WithSanitizer(s Sanitizer) Option {
	return func(r *Renderer) {
		r.sanitizer = s
	}
}

// WithUGCPolicy sanitizes output with a policy suited to user generated
// content: formatting markup survives, scripts and event handlers do not.
func WithUGCPolicy() Option {
	return WithSanitizer(UGCSanitizer())
}

// WithLogger sets the logger used for render events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a per-render outcome hook.
func WithObserver(observer Observer) Option {
	return func(r *Renderer) {
		if observer != nil {
			r.observers = append(r.observers, observer)
		}
	}
}
