// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api

import (
	"log"
	"time"
)

// Config carries the ambient knobs shared by the server and client
// façades: buffer sizing, the two watchdog timeouts named in spec.md §4.4
// and §5, and the logger every connection reports errors through.
// Grounded on the teacher's server.Config/facade.Config shape (a plain
// struct plus a DefaultConfig constructor and Option functions), narrowed
// to the values this connection model actually needs.
type Config struct {
	// ReadBufferInitialSize sizes the per-connection read buffer's initial
	// capacity. It grows via append as needed; this only avoids early
	// reallocations for the common frame size.
	ReadBufferInitialSize int

	// MessageTimeout bounds how long a fragmented message may sit
	// incomplete before it is abandoned per spec.md §5.
	MessageTimeout time.Duration

	// HandshakeTimeout bounds how long a connection may sit in
	// StateHandshake before it is aborted per spec.md §4.4.
	HandshakeTimeout time.Duration

	// Logger receives transport and protocol diagnostics. Defaults to
	// log.Default() when nil.
	Logger *log.Logger
}

// DefaultConfig returns the baseline configuration used when a façade is
// constructed with no options.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferInitialSize: 4096,
		MessageTimeout:        30 * time.Second,
		HandshakeTimeout:      30 * time.Second,
		Logger:                log.Default(),
	}
}

// Option customizes a Config in place, following the functional-options
// pattern the teacher uses throughout server/options.go.
type Option func(*Config)

// WithReadBufferInitialSize overrides the initial read-buffer capacity.
func WithReadBufferInitialSize(n int) Option {
	return func(c *Config) { c.ReadBufferInitialSize = n }
}

// WithMessageTimeout overrides the fragmented-message completion deadline.
func WithMessageTimeout(d time.Duration) Option {
	return func(c *Config) { c.MessageTimeout = d }
}

// WithHandshakeTimeout overrides the handshake completion deadline.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Apply builds a Config from DefaultConfig with opts applied in order.
func Apply(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}
