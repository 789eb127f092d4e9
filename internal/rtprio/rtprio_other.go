//go:build !linux && !windows

// ABOUTME: Fallback for platforms without thread priority support
// ABOUTME: Always reports ErrUnsupported
package rtprio

func raise() error {
	return ErrUnsupported
}
