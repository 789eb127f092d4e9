// ABOUTME: Dynamic mixer summing live sources sample by sample
// ABOUTME: Sources join at frame boundaries and leave when exhausted
package mix

import (
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/resample"
)

// initialSources is the capacity reserved for the active source list
const initialSources = 16

// inputs is the state shared between a Controller and its Mixer
type inputs struct {
	mu         sync.Mutex
	pending    []audio.Source
	hasPending atomic.Bool
	added      atomic.Uint64
}

// Controller is the producer side of a mixer
type Controller struct {
	in         *inputs
	channels   int
	sampleRate int
}

// Mixer is the consumer side of a mixer. It is not safe for concurrent use.
type Mixer struct {
	in         *inputs
	current    []audio.Source
	channels   int
	sampleRate int
	framePos   int
}

// New creates a mixer producing interleaved samples with the given format
func New(channels, sampleRate int) (*Controller, *Mixer) {
	in := &inputs{}
	ctrl := &Controller{
		in:         in,
		channels:   channels,
		sampleRate: sampleRate,
	}
	mixer := &Mixer{
		in:         in,
		current:    make([]audio.Source, 0, initialSources),
		channels:   channels,
		sampleRate: sampleRate,
	}
	return ctrl, mixer
}

// Add queues src for mixing. The source is converted to the mixer's
// channel count and sample rate and starts at the next frame boundary.
func (c *Controller) Add(src audio.Source) {
	src = resample.Uniform(src, c.channels, c.sampleRate)

	c.in.mu.Lock()
	c.in.pending = append(c.in.pending, src)
	c.in.hasPending.Store(true)
	c.in.mu.Unlock()

	c.in.added.Add(1)
}

// Added returns the total number of sources ever added
func (c *Controller) Added() uint64 {
	return c.in.added.Load()
}

func (c *Controller) Channels() int   { return c.channels }
func (c *Controller) SampleRate() int { return c.sampleRate }

// Next returns the next mixed sample. It returns false when no source is
// active, which callers treat as an underrun.
func (m *Mixer) Next() (float32, bool) {
	if m.framePos == 0 && m.in.hasPending.Load() {
		m.takePending()
	}
	if len(m.current) == 0 {
		// Idle slots still occupy a channel position
		m.framePos = (m.framePos + 1) % m.channels
		return 0, false
	}

	var sum float32
	produced := 0
	kept := m.current[:0]
	for _, src := range m.current {
		v, ok := src.Next()
		if !ok {
			continue
		}
		sum += v
		produced++
		kept = append(kept, src)
	}
	// Drop references to exhausted sources
	for i := len(kept); i < len(m.current); i++ {
		m.current[i] = nil
	}
	m.current = kept

	m.framePos = (m.framePos + 1) % m.channels
	return sum, produced > 0
}

// Idle reports whether the mixer has neither active nor queued sources
func (m *Mixer) Idle() bool {
	return len(m.current) == 0 && !m.in.hasPending.Load()
}

// Active returns the number of sources currently being mixed
func (m *Mixer) Active() int {
	return len(m.current)
}

func (m *Mixer) Channels() int   { return m.channels }
func (m *Mixer) SampleRate() int { return m.sampleRate }

// takePending moves queued sources into the active set. It never blocks:
// if a producer holds the lock the sources are picked up on a later frame.
func (m *Mixer) takePending() {
	if !m.in.mu.TryLock() {
		return
	}
	m.current = append(m.current, m.in.pending...)
	clear(m.in.pending)
	m.in.pending = m.in.pending[:0]
	m.in.hasPending.Store(false)
	m.in.mu.Unlock()
}
