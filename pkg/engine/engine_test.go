// ABOUTME: Tests for the session registry and engine lifecycle
// ABOUTME: Drives the null backend by hand to observe exactly what devices receive
package engine

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/Resonate-Protocol/playout/pkg/source"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testDevice struct {
	id      output.DeviceID
	formats []audio.Format
	err     error
}

func (d testDevice) ID() output.DeviceID { return d.id }
func (d testDevice) Name() string        { return string(d.id) }
func (d testDevice) SupportedFormats() ([]audio.Format, error) {
	return d.formats, d.err
}

func stereoF32(id string) testDevice {
	return testDevice{
		id:      output.DeviceID(id),
		formats: []audio.Format{{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32}},
	}
}

func newTestEngine(t *testing.T, loop output.EventLoop, opts ...Option) *Engine {
	t.Helper()
	eng := New(loop, append([]Option{WithPriority(false)}, opts...)...)
	t.Cleanup(func() {
		require.NoError(t, eng.Close())
	})
	return eng
}

func newNull(t *testing.T) *output.Null {
	t.Helper()
	null := output.NewNull(output.NullConfig{})
	// Registered first so it runs after the engine has stopped
	t.Cleanup(func() { _ = null.Close() })
	return null
}

func ones(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = 1
	}
	return data
}

// openSession returns identifiers only, so no reference to the session
// outlives the call
//
//go:noinline
func openSession(t *testing.T, eng *Engine, dev output.Device) (uuid.UUID, output.StreamID) {
	s, err := eng.Session(dev)
	require.NoError(t, err)
	return s.ID(), s.Stream()
}

func waitStreamReleased(t *testing.T, null *output.Null, id output.StreamID) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return !slices.Contains(null.Streams(), id)
	}, 5*time.Second, 10*time.Millisecond, "stream %d was never released", id)
}

func TestPlayConcurrentFirstUseCreatesOneSession(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := stereoF32("card0")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.Play(dev, source.NewSamples(2, 48000, make([]float32, 64)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, null.Built())
	infos := eng.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, uint64(32), infos[0].Added)
	assert.Equal(t, output.DeviceID("card0"), infos[0].Device)
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.Metrics().SessionsCreated))
	assert.Equal(t, 32.0, testutil.ToFloat64(eng.Metrics().SourcesAdded))
}

func TestHeldSessionIsReused(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := stereoF32("card0")

	s, err := eng.Session(dev)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		eng.Play(dev, source.NewTone(440, 48000, 2))
	}
	again, err := eng.Session(dev)
	require.NoError(t, err)

	assert.Same(t, s, again)
	assert.Equal(t, 1, null.Built())
	assert.Equal(t, uint64(10), s.Added())
}

func TestDevicesGetSeparateSessions(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)

	b, err := eng.Session(stereoF32("b"))
	require.NoError(t, err)
	a, err := eng.Session(stereoF32("a"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Stream(), b.Stream())
	assert.Equal(t, 2, null.Built())

	infos := eng.Sessions()
	require.Len(t, infos, 2)
	assert.Equal(t, output.DeviceID("a"), infos[0].Device)
	assert.Equal(t, output.DeviceID("b"), infos[1].Device)
	assert.Equal(t, a.ID(), infos[0].ID)
}

func TestReleasedSessionIsRecreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	null := newNull(t)
	eng := newTestEngine(t, null, WithRegisterer(reg))
	dev := stereoF32("card0")

	firstID, firstStream := openSession(t, eng, dev)
	waitStreamReleased(t, null, firstStream)
	assert.Empty(t, eng.Sessions())

	expected := `
# HELP playout_sessions_active Current number of live device sessions
# TYPE playout_sessions_active gauge
playout_sessions_active 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "playout_sessions_active"))

	s, err := eng.Session(dev)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, s.ID())
	assert.NotEqual(t, firstStream, s.Stream())
	assert.Equal(t, 2, null.Built())
	assert.Equal(t, 2.0, testutil.ToFloat64(eng.Metrics().SessionsCreated))
}

func TestUnderrunWritesSilence(t *testing.T) {
	input := []float32{0.5, -0.5, 0.25}

	tests := []struct {
		enc    audio.Encoding
		verify func(t *testing.T, buf output.Buffer)
	}{
		{
			enc: audio.EncodingU16,
			verify: func(t *testing.T, buf output.Buffer) {
				assert.Equal(t, []uint16{
					audio.F32ToU16(0.5), audio.F32ToU16(-0.5), audio.F32ToU16(0.25),
					audio.SilenceU16, audio.SilenceU16, audio.SilenceU16,
				}, buf.U16)
			},
		},
		{
			enc: audio.EncodingI16,
			verify: func(t *testing.T, buf output.Buffer) {
				assert.Equal(t, []int16{
					audio.F32ToI16(0.5), audio.F32ToI16(-0.5), audio.F32ToI16(0.25),
					0, 0, 0,
				}, buf.I16)
			},
		},
		{
			enc: audio.EncodingF32,
			verify: func(t *testing.T, buf output.Buffer) {
				assert.Equal(t, []float32{0.5, -0.5, 0.25, 0, 0, 0}, buf.F32)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.enc.String(), func(t *testing.T) {
			null := newNull(t)
			eng := newTestEngine(t, null)
			dev := testDevice{
				id:      "mono",
				formats: []audio.Format{{Channels: 1, SampleRate: 48000, Encoding: tt.enc}},
			}

			s, err := eng.Session(dev)
			require.NoError(t, err)
			s.Add(source.NewSamples(1, 48000, input))

			buf, err := null.Pump(s.Stream(), 6)
			require.NoError(t, err)
			tt.verify(t, buf)

			assert.Equal(t, uint64(3), s.Underruns())
			assert.Equal(t, 3.0, testutil.ToFloat64(eng.Metrics().UnderrunSamples))
		})
	}
}

func TestIdleSessionPlaysSilence(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := testDevice{
		id:      "u16",
		formats: []audio.Format{{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingU16}},
	}

	s, err := eng.Session(dev)
	require.NoError(t, err)

	buf, err := null.Pump(s.Stream(), 4)
	require.NoError(t, err)
	for _, v := range buf.U16 {
		assert.Equal(t, audio.SilenceU16, v)
	}
	assert.Equal(t, uint64(8), s.Underruns())
}

func TestTwoSourcesAreSummed(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := stereoF32("card0")

	a := []float32{0.1, 0.2, 0.3, 0.4, -0.1, -0.2, 0.05, 0.0}
	b := []float32{0.2, -0.2, 0.1, 0.1, 0.3, -0.3, 0.05, 0.5}

	s, err := eng.Session(dev)
	require.NoError(t, err)
	s.Add(source.NewSamples(2, 48000, a))
	eng.Play(dev, source.NewSamples(2, 48000, b))

	buf, err := null.Pump(s.Stream(), 4)
	require.NoError(t, err)
	require.Len(t, buf.F32, 8)
	for i := range a {
		assert.InDelta(t, a[i]+b[i], buf.F32[i], 1e-6, "sample %d", i)
	}
	assert.Zero(t, s.Underruns())
}

func TestSourcesAreConvertedToSessionFormat(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := stereoF32("card0")

	s, err := eng.Session(dev)
	require.NoError(t, err)
	s.Add(source.NewSamples(1, 48000, []float32{0.25, 0.5}))

	buf, err := null.Pump(s.Stream(), 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.25, 0.5, 0.5}, buf.F32)
}

func TestDroppedSessionPlaysAgain(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := stereoF32("card0")

	eng.Play(dev, source.NewSamples(2, 48000, ones(16)))
	streams := null.Streams()
	require.Len(t, streams, 1)
	first := streams[0]

	buf, err := null.Pump(first, 8)
	require.NoError(t, err)
	assert.Equal(t, ones(16), buf.F32)

	// The exhausted source is dropped and the session goes idle
	buf, err = null.Pump(first, 8)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), buf.F32)

	waitStreamReleased(t, null, first)

	eng.Play(dev, source.NewSamples(2, 48000, ones(16)))
	streams = null.Streams()
	require.Len(t, streams, 1)
	require.NotEqual(t, first, streams[0])

	buf, err = null.Pump(streams[0], 8)
	require.NoError(t, err)
	assert.Equal(t, ones(16), buf.F32)
}

func TestMixingSessionStaysAlive(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)

	eng.Play(stereoF32("card0"), source.NewTone(440, 48000, 2))
	streams := null.Streams()
	require.Len(t, streams, 1)

	_, err := null.Pump(streams[0], 16)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, streams, null.Streams())

	buf, err := null.Pump(streams[0], 16)
	require.NoError(t, err)
	assert.True(t, slices.ContainsFunc(buf.F32, func(v float32) bool { return v != 0 }))
	assert.Len(t, eng.Sessions(), 1)
}

func TestNoSupportedFormats(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	null := newNull(t)
	eng := newTestEngine(t, null, WithLogger(zap.New(core)))
	dev := testDevice{id: "broken"}

	eng.Play(dev, source.NewTone(440, 48000, 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.Metrics().PlayErrors))
	require.Equal(t, 1, logs.FilterMessage("Failed to play on device").Len())
	assert.Equal(t, "broken", logs.All()[0].ContextMap()["device"])

	_, err := eng.Session(dev)
	assert.ErrorIs(t, err, ErrNoSupportedFormats)
	assert.Zero(t, null.Built())
	assert.Empty(t, eng.Sessions())
}

func TestDeviceQueryFailure(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	queryErr := errors.New("device unplugged")

	_, err := eng.Session(testDevice{id: "gone", err: queryErr})
	assert.ErrorIs(t, err, queryErr)
}

func TestBuildStreamFailure(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, null)
	dev := testDevice{
		id:      "bad",
		formats: []audio.Format{{Channels: 0, SampleRate: 48000, Encoding: audio.EncodingF32}},
	}

	_, err := eng.Session(dev)
	assert.ErrorIs(t, err, output.ErrUnsupportedFormat)

	eng.Play(dev, source.NewTone(440, 48000, 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.Metrics().PlayErrors))

	// Other devices are unaffected
	_, err = eng.Session(stereoF32("good"))
	assert.NoError(t, err)
}

// refusingLoop builds streams but never starts them
type refusingLoop struct {
	*output.Null
}

var errDeviceBusy = errors.New("device busy")

func (l refusingLoop) PlayStream(output.StreamID) error {
	return errDeviceBusy
}

func TestActivationFailureEvictsSession(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, refusingLoop{null})
	dev := stereoF32("card0")

	eng.Play(dev, source.NewTone(440, 48000, 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.Metrics().PlayErrors))
	assert.Empty(t, null.Streams())
	assert.Empty(t, eng.Sessions())

	_, err := eng.Session(dev)
	assert.ErrorIs(t, err, errDeviceBusy)
	assert.Equal(t, 2, null.Built())
}

// gatedLoop holds the first PlayStream until released, then fails it
type gatedLoop struct {
	*output.Null
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLoop) PlayStream(id output.StreamID) error {
	if l.calls.Add(1) == 1 {
		close(l.entered)
		<-l.release
		return errDeviceBusy
	}
	return l.Null.PlayStream(id)
}

func TestConcurrentCallerRetriesAfterActivationFailure(t *testing.T) {
	null := newNull(t)
	loop := &gatedLoop{
		Null:    null,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := newTestEngine(t, loop)
	dev := stereoF32("card0")

	firstErr := make(chan error, 1)
	go func() {
		_, err := eng.Session(dev)
		firstErr <- err
	}()
	<-loop.entered

	second := make(chan *Session, 1)
	go func() {
		s, err := eng.Session(dev)
		assert.NoError(t, err)
		second <- s
	}()

	// The second caller waits for activation instead of taking the session early
	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, time.Millisecond)

	close(loop.release)
	require.ErrorIs(t, <-firstErr, errDeviceBusy)

	s := <-second
	require.NotNil(t, s)
	assert.False(t, s.failed.Load())
	assert.Equal(t, 2, null.Built())
	assert.Equal(t, []output.StreamID{s.Stream()}, null.Streams())
	runtime.KeepAlive(s)
}

func TestAddToFailedSessionDoesNotPin(t *testing.T) {
	null := newNull(t)
	eng := newTestEngine(t, refusingLoop{null})

	eng.mu.Lock()
	s, fresh, err := eng.lookup(stereoF32("card0"))
	eng.mu.Unlock()
	require.NoError(t, err)
	require.True(t, fresh)

	require.ErrorIs(t, eng.activate(s), errDeviceBusy)
	assert.True(t, s.failed.Load())

	s.Add(source.NewTone(440, 48000, 2))
	assert.Nil(t, s.feeder.claim.Load())
}

func TestPriorityFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	null := newNull(t)
	denied := func(o *engineOptions) {
		o.raisePriority = func() error { return errors.New("permission denied") }
	}
	eng := newTestEngine(t, null, WithLogger(zap.New(core)), denied)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to raise audio thread priority, continuing at default priority").Len() == 1
	}, time.Second, time.Millisecond)

	s, err := eng.Session(stereoF32("card0"))
	require.NoError(t, err)
	s.Add(source.NewSamples(2, 48000, ones(4)))

	buf, err := null.Pump(s.Stream(), 2)
	require.NoError(t, err)
	assert.Equal(t, ones(4), buf.F32)
}

// panickingLoop fails the moment the driver starts it
type panickingLoop struct {
	*output.Null
}

func (panickingLoop) Run(context.Context) error {
	panic("driver exploded")
}

func TestLoopPanicIsContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	null := newNull(t)
	eng := newTestEngine(t, panickingLoop{null}, WithLogger(zap.New(core)))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Audio event loop stopped, no further audio output").Len() == 1
	}, time.Second, time.Millisecond)

	// Sessions can still be created; they simply are not fed
	_, err := eng.Session(stereoF32("card0"))
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	null := newNull(t)
	eng := New(null, WithPriority(false))

	s, err := eng.Session(stereoF32("card0"))
	require.NoError(t, err)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err = eng.Session(stereoF32("card0"))
	assert.ErrorIs(t, err, ErrClosed)
	eng.Play(stereoF32("card0"), source.NewTone(440, 48000, 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(eng.Metrics().PlayErrors))
	assert.Empty(t, eng.Sessions())

	// The loop is no longer running, so devices get silence
	s.Add(source.NewSamples(2, 48000, ones(4)))
	buf, err := null.Pump(s.Stream(), 2)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), buf.F32)
}
