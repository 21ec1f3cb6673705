// File: registry/norace_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !race

package registry

const raceEnabled = false
