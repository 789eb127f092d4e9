// ABOUTME: Malgo-based audio host backed by the miniaudio library
// ABOUTME: Enumerates playback devices and routes device callbacks through the event loop
package output

import (
	"context"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/gen2brain/malgo"
)

// fallbackFormats is advertised for devices that report no native format
// miniaudio can open directly; miniaudio converts internally.
var fallbackFormats = []audio.Format{
	{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32},
	{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingI16},
}

// Malgo is a Host using malgo/miniaudio
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	disp     *dispatcher

	mu      sync.Mutex
	streams map[StreamID]*malgoStream
	nextID  StreamID
}

type malgoStream struct {
	device  *malgo.Device
	req     *request
	format  audio.Format
	playing bool
}

type malgoDevice struct {
	host *Malgo
	info malgo.DeviceInfo
}

// NewMalgo initializes a miniaudio context
func NewMalgo() (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &Malgo{
		malgoCtx: ctx,
		disp:     newDispatcher(),
		streams:  make(map[StreamID]*malgoStream),
	}, nil
}

// Devices lists playback devices
func (m *Malgo) Devices() ([]Device, error) {
	infos, err := m.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = &malgoDevice{host: m, info: info}
	}
	return devices, nil
}

// DefaultDevice returns the device miniaudio flags as default, or the first
// playback device
func (m *Malgo) DefaultDevice() (Device, error) {
	devices, err := m.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	for _, d := range devices {
		if d.(*malgoDevice).info.IsDefault != 0 {
			return d, nil
		}
	}
	return devices[0], nil
}

// EventLoop returns m itself
func (m *Malgo) EventLoop() EventLoop {
	return m
}

// BuildStream initializes a paused miniaudio playback device
func (m *Malgo) BuildStream(dev Device, format audio.Format, fill FillFunc) (StreamID, error) {
	md, ok := dev.(*malgoDevice)
	if !ok || md.host != m {
		return 0, fmt.Errorf("device %q does not belong to this host", dev.ID())
	}

	var sampleFormat malgo.FormatType
	switch format.Encoding {
	case audio.EncodingI16:
		sampleFormat = malgo.FormatS16
	case audio.EncodingF32:
		sampleFormat = malgo.FormatF32
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	st := &malgoStream{req: newRequest(fill), format: format}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sampleFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.Playback.DeviceID = md.info.ID.Pointer()
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.disp.serve(st.req, bufferFromBytes(format.Encoding, pOutputSample))
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	st.device = device

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.streams[m.nextID] = st
	return m.nextID, nil
}

// PlayStream starts the device
func (m *Malgo) PlayStream(id StreamID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if st.playing {
		return nil
	}
	if err := st.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	st.playing = true
	return nil
}

// DestroyStream stops and uninitializes the device
func (m *Malgo) DestroyStream(id StreamID) {
	m.mu.Lock()
	st, ok := m.streams[id]
	delete(m.streams, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	if st.playing {
		// Stop waits for an in-flight callback, which may be queued on Run
		_ = st.device.Stop()
	}
	st.device.Uninit()
}

// Run dispatches device callbacks until ctx is done
func (m *Malgo) Run(ctx context.Context) error {
	return m.disp.run(ctx)
}

// Close destroys every stream and releases the miniaudio context
func (m *Malgo) Close() error {
	m.mu.Lock()
	ids := make([]StreamID, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	m.disp.stop()
	for _, id := range ids {
		m.DestroyStream(id)
	}

	if m.malgoCtx != nil {
		err := m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
		if err != nil {
			return fmt.Errorf("malgo context uninit: %w", err)
		}
	}
	return nil
}

func (d *malgoDevice) ID() DeviceID {
	return DeviceID(d.info.ID.String())
}

func (d *malgoDevice) Name() string {
	return d.info.Name()
}

// SupportedFormats queries the device's native data formats
func (d *malgoDevice) SupportedFormats() ([]audio.Format, error) {
	info, err := d.host.malgoCtx.DeviceInfo(malgo.Playback, d.info.ID, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("failed to query device %s: %w", d.ID(), err)
	}

	formats := formatsFromNative(info.Formats)
	if len(formats) == 0 {
		formats = append(formats, fallbackFormats...)
	}
	return formats, nil
}

// formatsFromNative maps miniaudio native formats to stream formats.
// A zero channel count or sample rate means the device accepts any value.
func formatsFromNative(native []malgo.DataFormat) []audio.Format {
	var formats []audio.Format
	for _, nf := range native {
		var enc audio.Encoding
		switch nf.Format {
		case malgo.FormatS16:
			enc = audio.EncodingI16
		case malgo.FormatF32:
			enc = audio.EncodingF32
		default:
			continue
		}

		channels := int(nf.Channels)
		if channels == 0 {
			channels = 2
		}

		rates := []int{int(nf.SampleRate)}
		if nf.SampleRate == 0 {
			rates = []int{44100, 48000}
		}
		for _, rate := range rates {
			formats = append(formats, audio.Format{Channels: channels, SampleRate: rate, Encoding: enc})
		}
	}
	return formats
}
