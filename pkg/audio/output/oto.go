// ABOUTME: Oto-based audio host exposing the system default output
// ABOUTME: Each stream is an oto player pulling buffers through the event loop
package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows only one context per process, so it is shared by all hosts
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

type otoDevice struct{}

func (otoDevice) ID() DeviceID { return "oto:default" }
func (otoDevice) Name() string { return "System Default (oto)" }
func (otoDevice) SupportedFormats() ([]audio.Format, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	// Once the shared context exists it is the only format that can be opened
	if otoCtx != nil {
		return []audio.Format{otoFormat}, nil
	}
	return []audio.Format{
		{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32},
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingF32},
		{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingI16},
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingI16},
	}, nil
}

// Oto is a Host using the oto library
type Oto struct {
	bufferSize time.Duration
	disp       *dispatcher

	mu      sync.Mutex
	streams map[StreamID]*otoStream
	nextID  StreamID
}

type otoStream struct {
	player *oto.Player
	reader *otoReader
}

// otoReader adapts the dispatcher to the io.Reader oto pulls from
type otoReader struct {
	disp   *dispatcher
	req    *request
	enc    audio.Encoding
	closed atomic.Bool
}

func (r *otoReader) Read(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, io.EOF
	}
	n := len(p) - len(p)%r.enc.BytesPerSample()
	if n == 0 {
		return 0, nil
	}
	r.disp.serve(r.req, bufferFromBytes(r.enc, p[:n]))
	return n, nil
}

// NewOto creates an oto host. bufferSize of zero uses oto's default.
func NewOto(bufferSize time.Duration) *Oto {
	return &Oto{
		bufferSize: bufferSize,
		disp:       newDispatcher(),
		streams:    make(map[StreamID]*otoStream),
	}
}

// Devices returns the single system default device
func (o *Oto) Devices() ([]Device, error) {
	return []Device{otoDevice{}}, nil
}

// DefaultDevice returns the system default device
func (o *Oto) DefaultDevice() (Device, error) {
	return otoDevice{}, nil
}

// EventLoop returns o itself
func (o *Oto) EventLoop() EventLoop {
	return o
}

// BuildStream creates a paused player on the shared oto context
func (o *Oto) BuildStream(dev Device, format audio.Format, fill FillFunc) (StreamID, error) {
	if _, ok := dev.(otoDevice); !ok {
		return 0, fmt.Errorf("device %q does not belong to this host", dev.ID())
	}

	ctx, err := o.context(format)
	if err != nil {
		return 0, err
	}

	reader := &otoReader{disp: o.disp, req: newRequest(fill), enc: format.Encoding}
	st := &otoStream{player: ctx.NewPlayer(reader), reader: reader}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	o.streams[o.nextID] = st
	return o.nextID, nil
}

// context returns the shared oto context, creating it for format on first use
func (o *Oto) context(format audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if format != otoFormat {
			return nil, fmt.Errorf("%w: oto is already open as %s", ErrUnsupportedFormat, otoFormat)
		}
		return otoCtx, nil
	}

	var sampleFormat oto.Format
	switch format.Encoding {
	case audio.EncodingF32:
		sampleFormat = oto.FormatFloat32LE
	case audio.EncodingI16:
		sampleFormat = oto.FormatSignedInt16LE
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       sampleFormat,
		BufferSize:   o.bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// PlayStream starts the player
func (o *Oto) PlayStream(id StreamID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	st.player.Play()
	return nil
}

// DestroyStream closes the player
func (o *Oto) DestroyStream(id StreamID) {
	o.mu.Lock()
	st, ok := o.streams[id]
	delete(o.streams, id)
	o.mu.Unlock()

	if !ok {
		return
	}
	st.reader.closed.Store(true)
	st.player.Pause()
	_ = st.player.Close()
}

// Run dispatches player reads until ctx is done
func (o *Oto) Run(ctx context.Context) error {
	return o.disp.run(ctx)
}

// Close destroys every stream. The shared oto context stays open for the
// life of the process.
func (o *Oto) Close() error {
	o.mu.Lock()
	ids := make([]StreamID, 0, len(o.streams))
	for id := range o.streams {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	o.disp.stop()
	for _, id := range ids {
		o.DestroyStream(id)
	}
	return nil
}
