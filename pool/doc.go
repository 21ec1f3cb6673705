// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable I/O buffers for connection handlers. Handlers run on many workers
// at once, so buffers are recycled through sync.Pool instead of being
// allocated per connection.
package pool
