// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/momentics/gowsproto/api"
)

// Config holds client-side configuration.
type Config struct {
	api.Config

	// DialTimeout bounds the initial TCP connect.
	DialTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Config:      *api.DefaultConfig(),
		DialTimeout: 10 * time.Second,
	}
}

// Option customizes a Config in place.
type Option func(*Config)

// WithDialTimeout overrides the TCP connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) { c.DialTimeout = d }
}

// WithAPIOption applies an ambient api.Option to the embedded api.Config.
func WithAPIOption(o api.Option) Option {
	return func(c *Config) { o(&c.Config) }
}
