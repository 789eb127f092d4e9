//go:build linux

// ABOUTME: Linux thread priority via setpriority on the thread id
// ABOUTME: Requests the highest nice level; needs CAP_SYS_NICE or a suitable RLIMIT_NICE
package rtprio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// highestNice is the most favorable nice value on Linux
const highestNice = -20

func raise() error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), highestNice); err != nil {
		return fmt.Errorf("setpriority(%d): %w", highestNice, err)
	}
	return nil
}
