// File: api/module.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Module contract implemented by every connection handler loaded into the host.

package api

// Port is the TCP port a module asks to be served on.
type Port int32

// WorkFunc is the per-connection callback of a module. It owns item for the
// duration of the call and must release it before returning.
type WorkFunc func(item *WorkItem)

// Module is a connection handler with an explicit lifecycle.
//
// Load is called exactly once, before any connection is accepted, and its
// result fixes the port for the life of the process. HandleConnection is
// called once per accepted connection, possibly concurrently with itself and
// with other modules; it must release the WorkItem and must not keep it after
// returning. Unload is called exactly once after the module's server stopped;
// a non-nil result is a fatal host condition.
type Module interface {
	Load() Port
	HandleConnection(item *WorkItem)
	Unload() error
}
