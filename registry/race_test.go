// File: registry/race_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build race

package registry

const raceEnabled = true
