// File: server/server.go
// Package server implements the per-module connection server: a listening
// socket, an accept loop and dispatch of accepted connections to a bounded
// worker pool bound to the module's callback.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-modhost/api"
	"github.com/momentics/hioload-modhost/control"
	"github.com/momentics/hioload-modhost/internal/concurrency"
	"github.com/momentics/hioload-modhost/rio"
)

// Counter names reported by Stats.
const (
	MetricAccepted      = "accepted"
	MetricAcceptRetries = "accept_retries"
	MetricCompleted     = "completed"
	MetricUnreleased    = "unreleased"
	MetricDropped       = "dropped"
)

// ConnectionServer serves one module on one port.
type ConnectionServer struct {
	port    api.Port
	workers int
	work    api.WorkFunc

	pool     *concurrency.Executor
	listenFD int
	bound    atomic.Int32
	running  atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	loopDone chan struct{}

	metrics *control.Metrics
	fatal   func(error)
	log     *log.Logger
}

// New builds a server that will run work for every connection accepted on port,
// with at most workers callbacks in flight.
func New(workers int, port api.Port, work api.WorkFunc, opts ...ServerOption) *ConnectionServer {
	if workers <= 0 {
		workers = 1
	}
	s := &ConnectionServer{
		port:     port,
		workers:  workers,
		work:     work,
		listenFD: rio.InvalidFD,
		loopDone: make(chan struct{}),
		metrics:  control.NewMetrics(),
		log:      log.New(log.Writer(), "[server] ", log.LstdFlags),
	}
	s.fatal = func(err error) { s.log.Fatalf("fatal: %v", err) }
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start binds the listening socket and schedules the accept loop on the
// worker pool. The pool holds one extra worker for the accept loop, which
// occupies it until Stop.
func (s *ConnectionServer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return api.ErrAlreadyRunning
	}
	fd, err := listenTCP(s.port)
	if err != nil {
		close(s.loopDone)
		return fmt.Errorf("server: port %d: %w", s.port, err)
	}
	s.listenFD = fd
	if p, ok := boundPort(fd); ok {
		s.bound.Store(int32(p))
	}
	s.pool = concurrency.NewExecutor(s.workers + 1)
	s.running.Store(true)
	if err := s.pool.Submit(func() { s.acceptLoop(fd) }); err != nil {
		s.running.Store(false)
		close(s.loopDone)
		_ = rio.Close(&s.listenFD)
		s.pool.Close()
		return fmt.Errorf("server: schedule accept loop: %w", err)
	}
	s.log.Printf("listening on port %d with %d workers", s.Port(), s.workers)
	return nil
}

// Stop ends the accept loop, closes the listening socket and waits for every
// queued and running callback to finish. Safe to call more than once; only the
// first call reports a failure to close the listening socket.
func (s *ConnectionServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if !s.started.Load() {
			return
		}
		if s.running.CompareAndSwap(true, false) {
			s.wake()
		}
		<-s.loopDone
		if cerr := rio.Close(&s.listenFD); cerr != nil {
			err = fmt.Errorf("server: close port %d: %w", s.Port(), cerr)
		}
		if s.pool != nil {
			s.pool.Close()
		}
		s.log.Printf("port %d stopped", s.Port())
	})
	return err
}

// Running reports whether the accept loop is serving.
func (s *ConnectionServer) Running() bool {
	return s.running.Load()
}

// Port returns the port captured at bind time, or the requested one before
// Start. It stays valid after Stop.
func (s *ConnectionServer) Port() api.Port {
	if p := s.bound.Load(); p != 0 {
		return api.Port(p)
	}
	return s.port
}

// Workers returns the maximum number of concurrent callbacks.
func (s *ConnectionServer) Workers() int {
	return s.workers
}

// Stats merges connection counters with pool statistics.
func (s *ConnectionServer) Stats() map[string]int64 {
	out := s.metrics.Snapshot()
	if s.pool != nil {
		for k, v := range s.pool.Stats() {
			out["pool."+k] = v
		}
	}
	return out
}

// dispatch hands item to the pool. The item is released here if the pool
// refuses it.
func (s *ConnectionServer) dispatch(item *api.WorkItem) {
	s.metrics.Inc(MetricAccepted)
	if err := s.pool.Submit(func() { s.runWork(item) }); err != nil {
		s.metrics.Inc(MetricDropped)
		s.log.Printf("conn %s from %s dropped: %v", item.ID, item.PeerAddr(), err)
		_ = item.Close()
	}
}

// runWork invokes the module callback once and closes whatever it left open.
func (s *ConnectionServer) runWork(item *api.WorkItem) {
	defer func() {
		if !item.Released() {
			s.metrics.Inc(MetricUnreleased)
			s.log.Printf("conn %s from %s not released by handler", item.ID, item.PeerAddr())
			_ = item.Close()
		}
		s.metrics.Inc(MetricCompleted)
	}()
	s.work(item)
}
