// File: rio/rio.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reliable byte-stream and datagram primitives over raw descriptors.
//
// Receive-class calls (Recv, RecvFrom, Read) issue a single underlying call and
// retry only when it was interrupted by a signal; short reads are returned as is.
// Send-class calls (Send, SendTo, Write) loop until the whole buffer has been
// transmitted or an unrecoverable error occurs. Every failure is reported as
// n == -1 together with a non-nil error, so callers may test either.

package rio

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// InvalidFD is the sentinel stored in a released descriptor slot.
const InvalidFD = -1

// ErrInvalidArgument is returned for an empty buffer or an invalid descriptor.
var ErrInvalidArgument = errors.New("rio: invalid argument")

// sysOps is the syscall table the primitives are built on.
type sysOps struct {
	read     func(fd int, p []byte) (int, error)
	write    func(fd int, p []byte) (int, error)
	recvfrom func(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	sendmsg  func(fd int, p []byte, to unix.Sockaddr, flags int) (int, error)
	close    func(fd int) error
}

var std = &sysOps{
	read:     unix.Read,
	write:    unix.Write,
	recvfrom: unix.Recvfrom,
	sendmsg: func(fd int, p []byte, to unix.Sockaddr, flags int) (int, error) {
		return unix.SendmsgN(fd, p, nil, to, flags)
	},
	close: unix.Close,
}

// Recv receives at most len(buf) bytes from a connected socket.
func Recv(fd int, buf []byte, flags int) (int, error) { return std.recv(fd, buf, flags) }

// RecvFrom receives a datagram and reports the sender address.
func RecvFrom(fd int, buf []byte, flags int) (int, unix.Sockaddr, error) {
	return std.recvFrom(fd, buf, flags)
}

// Read reads at most len(buf) bytes from fd.
func Read(fd int, buf []byte) (int, error) { return std.readOnce(fd, buf) }

// Send transmits all of buf on a connected socket.
func Send(fd int, buf []byte, flags int) (int, error) { return std.send(fd, buf, flags) }

// SendTo transmits all of buf to the given address.
func SendTo(fd int, buf []byte, flags int, to unix.Sockaddr) (int, error) {
	return std.sendTo(fd, buf, flags, to)
}

// Write writes all of buf to fd.
func Write(fd int, buf []byte) (int, error) { return std.writeAll(fd, buf) }

// Close closes the descriptor held in *fd and stores InvalidFD in the slot.
// A nil slot or one already holding InvalidFD is left untouched.
func Close(fd *int) error { return std.closeSlot(fd) }

func valid(fd int, buf []byte) bool {
	return fd >= 0 && len(buf) > 0
}

func (o *sysOps) recv(fd int, buf []byte, flags int) (int, error) {
	if !valid(fd, buf) {
		return -1, ErrInvalidArgument
	}
	return retryInterrupted("recv", func() (int, error) {
		n, _, err := o.recvfrom(fd, buf, flags)
		return n, err
	})
}

func (o *sysOps) recvFrom(fd int, buf []byte, flags int) (int, unix.Sockaddr, error) {
	if !valid(fd, buf) {
		return -1, nil, ErrInvalidArgument
	}
	var from unix.Sockaddr
	n, err := retryInterrupted("recvfrom", func() (int, error) {
		var (
			n   int
			err error
		)
		n, from, err = o.recvfrom(fd, buf, flags)
		return n, err
	})
	if err != nil {
		return -1, nil, err
	}
	return n, from, nil
}

func (o *sysOps) readOnce(fd int, buf []byte) (int, error) {
	if !valid(fd, buf) {
		return -1, ErrInvalidArgument
	}
	return retryInterrupted("read", func() (int, error) {
		return o.read(fd, buf)
	})
}

func (o *sysOps) send(fd int, buf []byte, flags int) (int, error) {
	if !valid(fd, buf) {
		return -1, ErrInvalidArgument
	}
	return transmitAll("send", buf, func(p []byte) (int, error) {
		return o.sendmsg(fd, p, nil, flags)
	})
}

func (o *sysOps) sendTo(fd int, buf []byte, flags int, to unix.Sockaddr) (int, error) {
	if !valid(fd, buf) {
		return -1, ErrInvalidArgument
	}
	return transmitAll("sendto", buf, func(p []byte) (int, error) {
		return o.sendmsg(fd, p, to, flags)
	})
}

func (o *sysOps) writeAll(fd int, buf []byte) (int, error) {
	if !valid(fd, buf) {
		return -1, ErrInvalidArgument
	}
	return transmitAll("write", buf, func(p []byte) (int, error) {
		return o.write(fd, p)
	})
}

func (o *sysOps) closeSlot(fd *int) error {
	if fd == nil || *fd < 0 {
		return nil
	}
	err := o.close(*fd)
	*fd = InvalidFD
	if err != nil {
		return fmt.Errorf("rio: close: %w", err)
	}
	return nil
}

// retryInterrupted issues call once, repeating it only on EINTR.
func retryInterrupted(op string, call func() (int, error)) (int, error) {
	for {
		n, err := call()
		if err == nil {
			return n, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return -1, fmt.Errorf("rio: %s: %w", op, err)
	}
}

// transmitAll loops until buf is fully sent. Partially sent data is not rolled back.
func transmitAll(op string, buf []byte, call func(p []byte) (int, error)) (int, error) {
	sent := 0
	for sent < len(buf) {
		n, err := call(buf[sent:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return -1, fmt.Errorf("rio: %s: %w", op, err)
		}
		if n <= 0 {
			return -1, fmt.Errorf("rio: %s: %w", op, io.ErrShortWrite)
		}
		sent += n
	}
	return sent, nil
}
