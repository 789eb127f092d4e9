// ABOUTME: Mixing session shared by all callers playing on one device
// ABOUTME: Session is the strong handle; the registry only holds weak references
package engine

import (
	"runtime"
	"sync/atomic"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/mix"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/google/uuid"
)

// Session mixes sources into one device stream. Callers may share and copy
// the pointer freely; when no caller holds it and it has nothing left to
// mix, it is collected and its device stream destroyed.
type Session struct {
	id     uuid.UUID
	device output.DeviceID
	format audio.Format
	stream output.StreamID

	ctrl    *mix.Controller
	feeder  *feeder
	metrics *Metrics

	// ready is closed once activation finished; failed is set before that
	// when the stream could not start
	ready  chan struct{}
	failed atomic.Bool
}

// Add starts mixing src into the session's output at the next frame
// boundary. src is converted to the session format. Add never blocks on the
// driver.
func (s *Session) Add(src audio.Source) {
	s.ctrl.Add(src)
	// Hand the driver a reference only after the source is queued, so the
	// session cannot be collected between here and the driver seeing it.
	s.feeder.claim.Store(s)
	if s.failed.Load() {
		// The stream never started; nothing will release the claim
		s.feeder.claim.Store(nil)
	}
	s.metrics.SourcesAdded.Inc()
	runtime.KeepAlive(s)
}

// ID returns the session's unique identifier
func (s *Session) ID() uuid.UUID { return s.id }

// Device returns the identity of the session's device
func (s *Session) Device() output.DeviceID { return s.device }

// Format returns the negotiated stream format
func (s *Session) Format() audio.Format { return s.format }

// Stream returns the device stream the session feeds
func (s *Session) Stream() output.StreamID { return s.stream }

// Added returns the number of sources ever added
func (s *Session) Added() uint64 { return s.ctrl.Added() }

// Underruns returns the number of buffer slots filled with silence
func (s *Session) Underruns() uint64 { return s.feeder.underruns.Load() }

// SessionInfo is a snapshot of a live session
type SessionInfo struct {
	ID        uuid.UUID
	Device    output.DeviceID
	Format    audio.Format
	Added     uint64
	Underruns uint64
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		Device:    s.device,
		Format:    s.format,
		Added:     s.Added(),
		Underruns: s.Underruns(),
	}
}
