// ABOUTME: Session registry mapping output devices to shared mixing sessions
// ABOUTME: Lazily creates sessions, replaces stale entries and activates device streams
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/Resonate-Protocol/playout/internal/rtprio"
	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/mix"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrClosed is returned after the engine has been closed
var ErrClosed = errors.New("engine closed")

// Engine plays sources on output devices through one event loop
type Engine struct {
	loop          output.EventLoop
	logger        *zap.Logger
	metrics       *Metrics
	raisePriority func() error

	mu       sync.Mutex
	sessions map[output.DeviceID]weak.Pointer[Session]
	closed   bool

	live   atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Engine
type Option func(*engineOptions)

type engineOptions struct {
	logger        *zap.Logger
	registerer    prometheus.Registerer
	raisePriority func() error
}

// WithLogger sets the engine logger (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers the engine metrics with reg (default: unregistered)
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}

// WithPriority controls whether the driver thread tries to raise its
// scheduling priority (default: true)
func WithPriority(enabled bool) Option {
	return func(o *engineOptions) {
		if enabled {
			o.raisePriority = rtprio.RaiseCurrentThread
		} else {
			o.raisePriority = nil
		}
	}
}

// New creates an engine and starts its driver thread on loop
func New(loop output.EventLoop, opts ...Option) *Engine {
	o := engineOptions{
		logger:        zap.NewNop(),
		raisePriority: rtprio.RaiseCurrentThread,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		loop:          loop,
		logger:        o.logger,
		raisePriority: o.raisePriority,
		sessions:      make(map[output.DeviceID]weak.Pointer[Session]),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	e.metrics = newMetrics(o.registerer, func() float64 {
		return float64(e.live.Load())
	})

	go e.drive(ctx)
	return e
}

// Play mixes src into dev's session, creating the session if needed. It
// returns immediately; failures are logged and counted, never returned.
func (e *Engine) Play(dev output.Device, src audio.Source) {
	s, err := e.obtain(dev, src)
	if err != nil {
		e.metrics.PlayErrors.Inc()
		e.logger.Error("Failed to play on device",
			zap.String("device", string(dev.ID())),
			zap.Error(err))
		return
	}
	runtime.KeepAlive(s)
}

// Session returns dev's live session, creating and activating it if needed.
// Holding the returned session keeps the device stream open.
func (e *Engine) Session(dev output.Device) (*Session, error) {
	return e.obtain(dev, nil)
}

// Sessions returns a snapshot of the live sessions ordered by device
func (e *Engine) Sessions() []SessionInfo {
	e.mu.Lock()
	infos := make([]SessionInfo, 0, len(e.sessions))
	for _, wp := range e.sessions {
		if s := wp.Value(); s != nil {
			infos = append(infos, s.info())
		}
	}
	e.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Device < infos[j].Device
	})
	return infos
}

// Metrics returns the engine metrics
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close stops the driver thread. Live sessions keep their streams until
// they are collected, but are no longer fed.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	clear(e.sessions)
	e.mu.Unlock()

	e.cancel()
	<-e.done
	return nil
}

func (e *Engine) obtain(dev output.Device, src audio.Source) (*Session, error) {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrClosed
		}
		s, fresh, err := e.lookup(dev)
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}

		if !fresh {
			// Another caller is still activating the stream
			<-s.ready
			if s.failed.Load() {
				continue
			}
		}

		if src != nil {
			s.Add(src)
		}

		if fresh {
			if err := e.activate(s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}

// activate starts a newly created session's stream and releases callers
// waiting on it. On failure the session is evicted first, so waiters retry
// against a fresh entry.
func (e *Engine) activate(s *Session) error {
	defer close(s.ready)

	if err := e.loop.PlayStream(s.stream); err != nil {
		e.evict(s)
		return fmt.Errorf("failed to start stream on device %s: %w", s.device, err)
	}
	e.logger.Info("Started device session",
		zap.String("session", s.id.String()),
		zap.String("device", string(s.device)),
		zap.Stringer("format", s.format))
	return nil
}

// lookup returns the live session for dev or creates one. Must hold e.mu.
func (e *Engine) lookup(dev output.Device) (*Session, bool, error) {
	id := dev.ID()
	if wp, ok := e.sessions[id]; ok {
		if s := wp.Value(); s != nil && !s.failed.Load() {
			return s, false, nil
		}
		e.logger.Debug("Replacing released device session", zap.String("device", string(id)))
	}

	s, err := e.newSession(dev)
	if err != nil {
		return nil, false, err
	}
	e.sessions[id] = weak.Make(s)
	return s, true, nil
}

// streamRelease carries what the cleanup of a collected session needs. It
// must not reference the session itself.
type streamRelease struct {
	loop    output.EventLoop
	logger  *zap.Logger
	live    *atomic.Int64
	stream  output.StreamID
	device  output.DeviceID
	session uuid.UUID
}

func (e *Engine) newSession(dev output.Device) (*Session, error) {
	formats, err := dev.SupportedFormats()
	if err != nil {
		return nil, fmt.Errorf("failed to query formats of device %s: %w", dev.ID(), err)
	}
	format, err := SelectFormat(formats)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dev.ID(), err)
	}

	ctrl, mixer := mix.New(format.Channels, format.SampleRate)
	f := newFeeder(mixer, e.metrics.UnderrunSamples)

	stream, err := e.loop.BuildStream(dev, format, f.fill)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream on device %s: %w", dev.ID(), err)
	}

	s := &Session{
		id:      uuid.New(),
		device:  dev.ID(),
		format:  format,
		stream:  stream,
		ctrl:    ctrl,
		feeder:  f,
		metrics: e.metrics,
		ready:   make(chan struct{}),
	}

	e.live.Add(1)
	e.metrics.SessionsCreated.Inc()
	runtime.AddCleanup(s, releaseStream, streamRelease{
		loop:    e.loop,
		logger:  e.logger,
		live:    &e.live,
		stream:  stream,
		device:  s.device,
		session: s.id,
	})
	return s, nil
}

func releaseStream(r streamRelease) {
	r.live.Add(-1)
	r.loop.DestroyStream(r.stream)
	r.logger.Info("Released device session",
		zap.String("session", r.session.String()),
		zap.String("device", string(r.device)))
}

// evict drops s from the registry after its stream failed to start
func (e *Engine) evict(s *Session) {
	e.mu.Lock()
	if wp, ok := e.sessions[s.device]; ok && wp.Value() == s {
		delete(e.sessions, s.device)
	}
	e.mu.Unlock()

	// Let the session be collected even though it never ran
	s.failed.Store(true)
	s.feeder.claim.Store(nil)
	e.loop.DestroyStream(s.stream)
}
