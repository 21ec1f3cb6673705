// File: server/options.go
// Package server defines functional options for ConnectionServer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log"

	"github.com/momentics/hioload-modhost/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*ConnectionServer)

// WithMetrics directs the server counters into m.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *ConnectionServer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithFatal replaces the handler invoked on unrecoverable accept errors.
// The default terminates the process.
func WithFatal(fn func(error)) ServerOption {
	return func(s *ConnectionServer) {
		if fn != nil {
			s.fatal = fn
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *ConnectionServer) {
		if l != nil {
			s.log = l
		}
	}
}
