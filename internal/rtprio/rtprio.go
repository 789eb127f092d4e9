// ABOUTME: Real-time scheduling priority for the calling OS thread
// ABOUTME: Platform implementations live in build-tagged files
// Package rtprio raises the scheduling priority of the calling OS thread.
// Callers must have locked the goroutine to its thread with
// runtime.LockOSThread, otherwise the raised priority leaks to whichever
// goroutine the thread runs next.
package rtprio

import "errors"

// ErrUnsupported is returned on platforms without a priority implementation
var ErrUnsupported = errors.New("thread priority elevation not supported on this platform")

// RaiseCurrentThread raises the calling thread to the highest priority the
// host allows. A failure leaves the thread at its current priority.
func RaiseCurrentThread() error {
	return raise()
}
