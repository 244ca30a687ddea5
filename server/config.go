// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded on the teacher's server/types.go Config/DefaultConfig pair and
// server/options.go's functional options, narrowed to what a plain TCP
// WebSocket listener needs: a bind address plus the ambient api.Config
// knobs shared with the client façade.

package server

import (
	"time"

	"github.com/momentics/gowsproto/api"
)

// Config holds server-side configuration.
type Config struct {
	api.Config

	// ListenAddr is the TCP address to bind, e.g. ":9000".
	ListenAddr string

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// connections to finish before returning anyway.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Config:          *api.DefaultConfig(),
		ListenAddr:      ":9000",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Option customizes a Config in place.
type Option func(*Config)

// WithListenAddr overrides the bind address.
func WithListenAddr(addr string) Option {
	return func(c *Config) { c.ListenAddr = addr }
}

// WithShutdownTimeout overrides the graceful-shutdown wait bound.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) { c.ShutdownTimeout = d }
}

// WithAPIOption applies an ambient api.Option (timeouts, logger, buffer
// sizing) to the embedded api.Config.
func WithAPIOption(o api.Option) Option {
	return func(c *Config) { o(&c.Config) }
}
