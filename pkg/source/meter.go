// ABOUTME: Source wrappers observed from other goroutines
// ABOUTME: Meter tracks peak level and OnEnd reports when a source runs dry
package source

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/playout/pkg/audio"
)

// Meter passes samples through while recording the peak absolute level
type Meter struct {
	audio.Source
	peak atomic.Uint32
}

// NewMeter wraps src
func NewMeter(src audio.Source) *Meter {
	return &Meter{Source: src}
}

func (m *Meter) Next() (float32, bool) {
	v, ok := m.Source.Next()
	level := float32(math.Abs(float64(v)))
	for {
		old := m.peak.Load()
		if level <= math.Float32frombits(old) || m.peak.CompareAndSwap(old, math.Float32bits(level)) {
			break
		}
	}
	return v, ok
}

// Peak returns the highest level since the previous call and resets it
func (m *Meter) Peak() float32 {
	return math.Float32frombits(m.peak.Swap(0))
}

type onEnd struct {
	audio.Source
	once sync.Once
	fn   func()
}

// OnEnd calls fn once, on the reading goroutine, the first time src reports
// it is exhausted. fn must not block.
func OnEnd(src audio.Source, fn func()) audio.Source {
	return &onEnd{Source: src, fn: fn}
}

func (e *onEnd) Next() (float32, bool) {
	v, ok := e.Source.Next()
	if !ok {
		e.once.Do(e.fn)
	}
	return v, ok
}
