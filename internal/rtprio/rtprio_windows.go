//go:build windows

// ABOUTME: Windows thread priority via SetThreadPriority
// ABOUTME: Requests THREAD_PRIORITY_TIME_CRITICAL for the current thread
package rtprio

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const threadPriorityTimeCritical = 15

var procSetThreadPriority = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadPriority")

func raise() error {
	if err := procSetThreadPriority.Find(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	r, _, err := procSetThreadPriority.Call(uintptr(windows.CurrentThread()), threadPriorityTimeCritical)
	if r == 0 {
		return fmt.Errorf("SetThreadPriority: %w", err)
	}
	return nil
}
