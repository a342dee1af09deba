package qhsm

import (
	"log/slog"

	"github.com/anggasct/qhsm/pkg/core"
)

// Option configures a Machine
type Option func(*config)

type config struct {
	logger    *slog.Logger
	trace     core.TraceFunc
	observers []Observer
	id        string
	onStopped func(MachineInfo)
	onHalted  func(error)
}

// WithLogger sets the structured logger of the machine. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTrace installs a trace hook. It runs on the goroutine draining the
// queue and must not block.
func WithTrace(fn core.TraceFunc) Option {
	return func(c *config) {
		c.trace = fn
	}
}

// WithObserver registers an observer at construction time
func WithObserver(observer Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, observer)
	}
}

// WithID overrides the generated instance id
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithOnStopped sets a callback fired exactly once each time the machine
// completes a stop and goes offline
func WithOnStopped(fn func(MachineInfo)) Option {
	return func(c *config) {
		c.onStopped = fn
	}
}

// WithOnHalted sets a callback fired when the machine halts
func WithOnHalted(fn func(error)) Option {
	return func(c *config) {
		c.onHalted = fn
	}
}
