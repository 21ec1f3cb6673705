// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the module host.
//
// Provides concurrent-safe state handling primitives including:
//   - Environment-driven process configuration
//   - Atomic named counters
//   - Debug probe registration and state export
package control
