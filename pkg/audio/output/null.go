// ABOUTME: Null audio backend with timer driven or manually pumped streams
// ABOUTME: Used for headless playback and for exercising the engine in tests
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
)

var errStreamPaused = errors.New("stream not playing")

// NullDevice is a virtual output device
type NullDevice struct {
	DeviceID   DeviceID
	DeviceName string
	Formats    []audio.Format
}

func (d NullDevice) ID() DeviceID { return d.DeviceID }
func (d NullDevice) Name() string { return d.DeviceName }
func (d NullDevice) SupportedFormats() ([]audio.Format, error) {
	formats := make([]audio.Format, len(d.Formats))
	copy(formats, d.Formats)
	return formats, nil
}

// DefaultNullDevice advertises one format per sample encoding
var DefaultNullDevice = NullDevice{
	DeviceID:   "null",
	DeviceName: "Null Output",
	Formats: []audio.Format{
		{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32},
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingI16},
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingU16},
	},
}

// NullConfig configures a Null backend
type NullConfig struct {
	// Period is the buffer duration. Zero disables the timer; buffers are
	// then only delivered through Pump.
	Period time.Duration

	// Devices lists the virtual devices (default: DefaultNullDevice)
	Devices []NullDevice

	// Observe is called on the stream's timer goroutine after each buffer
	// has been filled
	Observe func(id StreamID, buf Buffer)
}

// Null is a Host and EventLoop that writes to no device
type Null struct {
	config NullConfig
	disp   *dispatcher

	mu      sync.Mutex
	streams map[StreamID]*nullStream
	nextID  StreamID
	built   int
}

type nullStream struct {
	id      StreamID
	format  audio.Format
	req     *request
	playing bool
	stop    chan struct{}
	done    chan struct{}
}

// NewNull creates a null backend
func NewNull(config NullConfig) *Null {
	if len(config.Devices) == 0 {
		config.Devices = []NullDevice{DefaultNullDevice}
	}
	return &Null{
		config:  config,
		disp:    newDispatcher(),
		streams: make(map[StreamID]*nullStream),
	}
}

// Devices returns the configured virtual devices
func (n *Null) Devices() ([]Device, error) {
	devices := make([]Device, len(n.config.Devices))
	for i, d := range n.config.Devices {
		devices[i] = d
	}
	return devices, nil
}

// DefaultDevice returns the first configured device
func (n *Null) DefaultDevice() (Device, error) {
	return n.config.Devices[0], nil
}

// EventLoop returns n itself
func (n *Null) EventLoop() EventLoop {
	return n
}

// BuildStream registers a paused stream
func (n *Null) BuildStream(dev Device, format audio.Format, fill FillFunc) (StreamID, error) {
	if format.Channels < 1 || format.SampleRate < 1 {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.built++
	st := &nullStream{
		id:     n.nextID,
		format: format,
		req:    newRequest(fill),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	n.streams[st.id] = st
	return st.id, nil
}

// PlayStream starts the stream's timer when a Period is configured
func (n *Null) PlayStream(id StreamID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	st, ok := n.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if st.playing {
		return nil
	}
	st.playing = true

	if n.config.Period > 0 {
		go n.tick(st)
	} else {
		close(st.done)
	}
	return nil
}

// DestroyStream stops the stream and waits for its timer to exit
func (n *Null) DestroyStream(id StreamID) {
	n.mu.Lock()
	st, ok := n.streams[id]
	if ok {
		delete(n.streams, id)
		close(st.stop)
	}
	n.mu.Unlock()

	if ok && st.playing {
		<-st.done
	}
}

// Run dispatches buffer-ready events until ctx is done
func (n *Null) Run(ctx context.Context) error {
	return n.disp.run(ctx)
}

// Pump delivers one buffer of the given number of frames to a playing
// stream and returns it once filled
func (n *Null) Pump(id StreamID, frames int) (Buffer, error) {
	n.mu.Lock()
	st, ok := n.streams[id]
	n.mu.Unlock()

	if !ok {
		return Buffer{}, fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if !st.playing {
		return Buffer{}, fmt.Errorf("%w: %d", errStreamPaused, id)
	}

	buf := NewBuffer(st.format.Encoding, frames*st.format.Channels)
	n.disp.serve(st.req, buf)
	return buf, nil
}

// Streams returns the IDs of live streams
func (n *Null) Streams() []StreamID {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]StreamID, 0, len(n.streams))
	for id := range n.streams {
		ids = append(ids, id)
	}
	return ids
}

// Built returns the number of streams ever built
func (n *Null) Built() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.built
}

// Close destroys all streams and releases waiting callbacks
func (n *Null) Close() error {
	for _, id := range n.Streams() {
		n.DestroyStream(id)
	}
	n.disp.stop()
	return nil
}

func (n *Null) tick(st *nullStream) {
	defer close(st.done)

	frames := int(int64(st.format.SampleRate) * int64(n.config.Period) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	buf := NewBuffer(st.format.Encoding, frames*st.format.Channels)

	ticker := time.NewTicker(n.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			n.disp.serve(st.req, buf)
			if n.config.Observe != nil {
				n.config.Observe(st.id, buf)
			}
		}
	}
}
