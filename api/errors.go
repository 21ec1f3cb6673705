// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared by the module host and handler modules.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the host.
var (
	ErrUnloadFailed   = errors.New("module unload failed")
	ErrAlreadyRunning = errors.New("already running")
)

// UnloadStatusError reports the non-zero status returned by a module unloader.
type UnloadStatusError struct {
	Module string
	Status int32
}

// Error implements the error interface.
func (e *UnloadStatusError) Error() string {
	return fmt.Sprintf("module %q unload returned status %d", e.Module, e.Status)
}

// Is reports ErrUnloadFailed as the category of this error.
func (e *UnloadStatusError) Is(target error) bool {
	return target == ErrUnloadFailed
}
