// File: api/workitem.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkItem is the unit of ownership passed from an accept loop to a handler.

package api

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-modhost/rio"
)

// WorkItem carries an accepted connection descriptor and its peer address.
// Exactly one goroutine owns a WorkItem at a time.
type WorkItem struct {
	ID         uuid.UUID
	FD         int
	Peer       unix.Sockaddr
	AcceptedAt time.Time
}

// NewWorkItem wraps an accepted descriptor.
func NewWorkItem(fd int, peer unix.Sockaddr) *WorkItem {
	return &WorkItem{
		ID:         uuid.New(),
		FD:         fd,
		Peer:       peer,
		AcceptedAt: time.Now(),
	}
}

// Close releases the connection. Calling it again is a no-op.
func (w *WorkItem) Close() error {
	return rio.Close(&w.FD)
}

// Released reports whether the connection has been closed.
func (w *WorkItem) Released() bool {
	return w.FD < 0
}

// PeerAddr formats the peer address as host:port.
func (w *WorkItem) PeerAddr() string {
	switch sa := w.Peer.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(sa.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(sa.Port))
	case *unix.SockaddrUnix:
		return sa.Name
	default:
		return "unknown"
	}
}
