// ABOUTME: Background driver running the event loop on a dedicated OS thread
// ABOUTME: Raises thread priority before dispatching and survives loop failures
package engine

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// drive runs the event loop until ctx is done. Failures are logged and the
// process carries on without audio.
func (e *Engine) drive(ctx context.Context) {
	defer close(e.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.raisePriority != nil {
		if err := e.raisePriority(); err != nil {
			e.logger.Warn("Failed to raise audio thread priority, continuing at default priority", zap.Error(err))
		} else {
			e.logger.Debug("Audio thread priority raised")
		}
	}

	if err := e.runLoop(ctx); err != nil {
		e.logger.Error("Audio event loop stopped, no further audio output", zap.Error(err))
	}
}

func (e *Engine) runLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event loop panic: %v", r)
		}
	}()
	return e.loop.Run(ctx)
}
