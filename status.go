// ABOUTME: Status TUI wiring for the playback commands
// ABOUTME: Runs the bubbletea program and feeds it engine and runtime stats
package main

import (
	"context"
	"runtime"
	"time"

	"github.com/Resonate-Protocol/playout/internal/ui"
	"github.com/Resonate-Protocol/playout/pkg/engine"
	"github.com/Resonate-Protocol/playout/pkg/source"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// startTUI runs the status TUI until the returned stop function is called
func (a *app) startTUI(ctx context.Context, eng *engine.Engine, device string, names []string, meters []*source.Meter) (func(), <-chan ui.QuitMsg) {
	ctrl := ui.NewControl()
	prog, err := ui.Run(ctrl)
	if err != nil {
		a.logger.Error("Failed to start TUI", zap.Error(err))
		return func() {}, nil
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if _, err := prog.Run(); err != nil {
			a.logger.Error("TUI stopped", zap.Error(err))
		}
	}()

	prog.Send(ui.StatusMsg{
		Backend: a.cfg.Backend,
		Device:  device,
		Sources: names,
	})

	ctx, cancel := context.WithCancel(ctx)
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		statsUpdateLoop(ctx, eng, meters, prog.Send)
	}()

	return func() {
		cancel()
		<-statsDone
		prog.Quit()
		<-exited
	}, ctrl.Quit
}

// statsUpdateLoop periodically updates the TUI with playback statistics
func statsUpdateLoop(ctx context.Context, eng *engine.Engine, meters []*source.Meter, send func(tea.Msg)) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc, lastMemSys uint64

	for {
		select {
		case <-ctx.Done():
			return

		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc
			lastMemSys = m.Sys

		case <-ticker.C:
			peak := peakLevel(meters)
			send(ui.StatusMsg{
				Sessions:   eng.Sessions(),
				Peak:       &peak,
				PlayErrors: counterValue(eng.Metrics().PlayErrors),
				Goroutines: lastGoroutines,
				MemAlloc:   lastMemAlloc,
				MemSys:     lastMemSys,
			})
		}
	}
}

func peakLevel(meters []*source.Meter) float32 {
	var peak float32
	for _, m := range meters {
		if p := m.Peak(); p > peak {
			peak = p
		}
	}
	return peak
}

// counterValue reads the current value of a counter
func counterValue(c prometheus.Counter) int64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}
