// File: host/host.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host owns the loaded modules and their connection servers and drives the
// process-level lifecycle: Load every module and start its server, then on
// shutdown stop every server before unloading every module.

package host

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-modhost/api"
	"github.com/momentics/hioload-modhost/control"
	"github.com/momentics/hioload-modhost/registry"
	"github.com/momentics/hioload-modhost/server"
)

// DefaultWorkers is the per-module worker pool size.
const DefaultWorkers = 4

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Option customizes a Host.
type Option func(*Host)

// WithWorkers sets the worker pool size of every connection server.
func WithWorkers(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithFatal replaces the handler servers call on unrecoverable accept errors.
func WithFatal(fn func(error)) Option {
	return func(h *Host) { h.fatal = fn }
}

// WithMetrics supplies the counter registry of each module's server. fn is
// called once per module during Start; a nil result falls back to a fresh
// registry.
func WithMetrics(fn func(module string) *control.Metrics) Option {
	return func(h *Host) { h.metrics = fn }
}

// WithLogger sets the logger of the host and of the servers it creates.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.log = l
		}
	}
}

// Host runs one ConnectionServer per module.
type Host struct {
	mu      sync.Mutex
	state   state
	modules registry.ModuleList
	servers []*server.ConnectionServer

	workers int
	metrics func(string) *control.Metrics
	fatal   func(error)
	log     *log.Logger
}

// New creates a Host for modules. Modules are not loaded until Start.
func New(modules registry.ModuleList, opts ...Option) *Host {
	h := &Host{
		modules: modules,
		workers: DefaultWorkers,
		log:     log.New(log.Writer(), "[host] ", log.LstdFlags),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Start calls Load on every module and starts a server on the returned port.
// If any server fails to start, the servers already running are stopped, the
// modules loaded so far are unloaded and the error is returned.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateIdle {
		return api.ErrAlreadyRunning
	}

	for i, e := range h.modules {
		port := e.Module.Load()
		opts := []server.ServerOption{
			server.WithMetrics(h.metricsFor(e.Name)),
			server.WithLogger(h.log),
		}
		if h.fatal != nil {
			opts = append(opts, server.WithFatal(h.fatal))
		}
		srv := server.New(h.workers, port, e.Module.HandleConnection, opts...)
		if err := srv.Start(); err != nil {
			_ = srv.Stop()
			stopErr := h.stopServers()
			h.state = stateStopped
			err = fmt.Errorf("host: module %s: %w", e.Name, err)
			return errors.Join(err, stopErr, h.unload(h.modules[:i+1]))
		}
		h.servers = append(h.servers, srv)
		h.log.Printf("module %s serving on port %d", e.Name, srv.Port())
	}
	h.state = stateRunning
	return nil
}

// Stop stops every server, then unloads every module exactly once, even when a
// server fails to stop cleanly. Unload failures are joined into the result and
// match api.ErrUnloadFailed.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateRunning {
		return nil
	}
	h.state = stateStopped
	stopErr := h.stopServers()
	return errors.Join(stopErr, h.unload(h.modules))
}

func (h *Host) metricsFor(name string) *control.Metrics {
	if h.metrics != nil {
		if m := h.metrics(name); m != nil {
			return m
		}
	}
	return control.NewMetrics()
}

// unload calls Unload on each module in list.
func (h *Host) unload(list registry.ModuleList) error {
	var errs []error
	for _, e := range list {
		if err := e.Module.Unload(); err != nil {
			errs = append(errs, fmt.Errorf("host: module %s: %w", e.Name, err))
			continue
		}
		h.log.Printf("module %s unloaded", e.Name)
	}
	return errors.Join(errs...)
}

// stopServers stops all running servers concurrently and returns the first
// failure. Every server is stopped regardless.
func (h *Host) stopServers() error {
	var g errgroup.Group
	for i, srv := range h.servers {
		srv := srv
		name := h.modules[i].Name
		g.Go(func() error {
			if err := srv.Stop(); err != nil {
				return fmt.Errorf("host: module %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Servers returns the running servers in module order.
func (h *Host) Servers() []*server.ConnectionServer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*server.ConnectionServer, len(h.servers))
	copy(out, h.servers)
	return out
}

// Stats returns per-module server statistics keyed by module name.
func (h *Host) Stats() map[string]map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]map[string]int64, len(h.servers))
	for i, srv := range h.servers {
		out[h.modules[i].Name] = srv.Stats()
	}
	return out
}

// RegisterProbes exposes host state through dp.
func (h *Host) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("host.modules", func() any {
		h.mu.Lock()
		defer h.mu.Unlock()
		names := make([]string, len(h.modules))
		for i, e := range h.modules {
			names[i] = e.Name
		}
		return names
	})
	dp.RegisterProbe("host.servers", func() any {
		return h.Stats()
	})
}
