package engine

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBackendLabel tags dataset identifiers with the backend that produced
// them, so locally computed results never collide with proxied ones.
func WithBackendLabel(label string) Option {
	return func(e *Engine) {
		if label != "" {
			e.backendLabel = label
		}
	}
}

// WithDefaultUncertainty sets the band fraction used when an activity
// definition omits its own. Fractions outside (0, 1) are ignored.
func WithDefaultUncertainty(fraction float64) Option {
	return func(e *Engine) {
		if fraction > 0 && fraction < 1 {
			e.defaultUncertainty = fraction
		}
	}
}

// WithClock substitutes the timestamp source used for generated_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
