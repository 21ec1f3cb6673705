// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for the module host: a bounded FIFO executor whose
// workers run both the long-lived accept loop of a connection server and the
// per-connection dispatch tasks it produces.
package concurrency
