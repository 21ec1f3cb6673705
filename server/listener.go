// File: server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw-socket listener setup and the accept loop.

package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-modhost/api"
	"github.com/momentics/hioload-modhost/rio"
)

// ListenBacklog is the pending connection queue length of every listener.
const ListenBacklog = 1024

// wakeProbeDelay is how long Stop waits for shutdown(2) to interrupt accept
// before falling back to a loopback connection.
const wakeProbeDelay = 50 * time.Millisecond

// listenTCP creates a blocking IPv4 stream socket listening on all interfaces.
func listenTCP(port api.Port) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return rio.InvalidFD, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = rio.Close(&fd)
		return rio.InvalidFD, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)}); err != nil {
		_ = rio.Close(&fd)
		return rio.InvalidFD, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		_ = rio.Close(&fd)
		return rio.InvalidFD, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// boundPort reads the local port of fd.
func boundPort(fd int) (api.Port, bool) {
	if fd < 0 {
		return 0, false
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, false
	}
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return api.Port(in4.Port), true
	}
	return 0, false
}

// isTransientAccept reports accept errors that are retried in place.
func isTransientAccept(err error) bool {
	return errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EPROTO) ||
		errors.Is(err, unix.EINTR)
}

// acceptLoop runs on a pool worker until Stop clears the running flag.
func (s *ConnectionServer) acceptLoop(fd int) {
	defer close(s.loopDone)
	for s.running.Load() {
		nfd, peer, err := unix.Accept(fd)
		if err != nil {
			if !s.running.Load() {
				return
			}
			if isTransientAccept(err) {
				s.metrics.Inc(MetricAcceptRetries)
				continue
			}
			s.running.Store(false)
			s.fatal(fmt.Errorf("server: accept on port %d: %w", s.Port(), err))
			return
		}
		if !s.running.Load() {
			// Either the loopback wake connection or a client that raced Stop.
			s.metrics.Inc(MetricDropped)
			_ = rio.Close(&nfd)
			return
		}
		unix.CloseOnExec(nfd)
		s.dispatch(api.NewWorkItem(nfd, peer))
	}
}

// wake interrupts an accept call blocked on the listening socket. On Linux
// shutdown(2) is enough; elsewhere a loopback connection unblocks it.
func (s *ConnectionServer) wake() {
	port := s.Port()
	_ = unix.Shutdown(s.listenFD, unix.SHUT_RDWR)
	select {
	case <-s.loopDone:
		return
	case <-time.After(wakeProbeDelay):
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
	if c, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		_ = c.Close()
	}
}
