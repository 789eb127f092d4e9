// ABOUTME: Tests for sample producers
// ABOUTME: Covers generators, wrappers, decoders and the read-ahead buffer
package source

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	_ audio.Source = (*Tone)(nil)
	_ audio.Source = (*Samples)(nil)
	_ audio.Source = (*File)(nil)
	_ audio.Source = (*Buffered)(nil)
)

func drain(src audio.Source, limit int) []float32 {
	var out []float32
	for i := 0; i < limit; i++ {
		v, ok := src.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestToneDuplicatesChannels(t *testing.T) {
	tone := NewTone(1000, 8000, 2)
	samples := drain(tone, 8)
	require.Len(t, samples, 8)

	for i := 0; i < len(samples); i += 2 {
		assert.Equal(t, samples[i], samples[i+1], "frame %d", i/2)
	}
	assert.Equal(t, float32(0), samples[0])
	// 1000Hz at 8000Hz: second frame is sin(pi/4) at half amplitude
	assert.InDelta(t, 0.5*math.Sin(math.Pi/4), samples[2], 1e-6)
}

func TestToneNeverEnds(t *testing.T) {
	tone := NewTone(440, 48000, 1)
	assert.Len(t, drain(tone, 10000), 10000)
	assert.Equal(t, 48000, tone.SampleRate())
	assert.Equal(t, 1, tone.Channels())
}

func TestSamples(t *testing.T) {
	s := NewSamples(1, 8000, []float32{0.1, 0.2, 0.3})
	assert.Equal(t, 3, s.Remaining())
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, drain(s, 10))
	assert.Equal(t, 0, s.Remaining())

	_, ok := s.Next()
	assert.False(t, ok)
}

func TestTake(t *testing.T) {
	src := Take(NewTone(440, 8000, 2), 5)
	assert.Len(t, drain(src, 100), 5)
	assert.Equal(t, 2, src.Channels())

	short := Take(NewSamples(1, 8000, []float32{1, 2}), 5)
	assert.Equal(t, []float32{1, 2}, drain(short, 100))
}

func TestGain(t *testing.T) {
	src := Gain(NewSamples(1, 8000, []float32{0.5, -1}), 0.5)
	assert.Equal(t, []float32{0.25, -0.5}, drain(src, 10))
}

func writeWAV(t *testing.T, data []int, channels, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:   data,
		Format: &goaudio.Format{SampleRate: rate, NumChannels: channels},
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestOpenWAV(t *testing.T) {
	path := writeWAV(t, []int{0, 16384, -16384, -32768}, 2, 22050)

	file, err := Open(path)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "clip", file.Name())
	assert.Equal(t, 2, file.Channels())
	assert.Equal(t, 22050, file.SampleRate())
	assert.Equal(t, []float32{0, 0.5, -0.5, -1}, drain(file, 100))
	assert.NoError(t, file.Err())
}

func TestOpenUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = Open(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestDecodersRejectGarbage(t *testing.T) {
	garbage := []byte("definitely not audio data")

	_, err := NewMP3(bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = NewFLAC(bytes.NewReader(garbage))
	assert.Error(t, err)

	_, err = NewWAV(bytes.NewReader(garbage))
	assert.Error(t, err)
}

func TestBufferedPreservesOrder(t *testing.T) {
	data := make([]float32, 5000)
	for i := range data {
		data[i] = float32(i + 1)
	}

	b := NewBuffered(NewSamples(2, 44100, data), 512)
	defer b.Close()
	assert.Equal(t, 2, b.Channels())
	assert.Equal(t, 44100, b.SampleRate())

	var got []float32
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		v, ok := b.Next()
		if !ok {
			break
		}
		if v != 0 {
			got = append(got, v)
		}
	}
	assert.Equal(t, data, got)
}

func TestBufferedCloseStopsDecoder(t *testing.T) {
	b := NewBuffered(NewTone(440, 48000, 2), 256)
	v, ok := b.Next()
	assert.True(t, ok)
	assert.InDelta(t, 0, v, 1)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestMeterTracksPeak(t *testing.T) {
	m := NewMeter(NewSamples(1, 8000, []float32{0.1, -0.7, 0.3}))
	assert.Len(t, drain(m, 10), 3)
	assert.InDelta(t, 0.7, m.Peak(), 1e-6)
	assert.Equal(t, float32(0), m.Peak(), "peak resets after read")
}

func TestMeterConcurrentReset(t *testing.T) {
	data := make([]float32, 20000)
	for i := range data {
		data[i] = 0.25
	}
	m := NewMeter(NewSamples(1, 8000, data))

	done := make(chan struct{})
	go func() {
		defer close(done)
		drain(m, len(data))
	}()
	for i := 0; i < 1000; i++ {
		p := m.Peak()
		assert.True(t, p == 0 || p == 0.25, "unexpected peak %f", p)
	}
	<-done

	p := m.Peak()
	assert.True(t, p == 0 || p == 0.25, "unexpected peak %f", p)
	assert.Equal(t, float32(0), m.Peak(), "reset sticks once playback stops")
}

func TestOnEndFiresOnce(t *testing.T) {
	calls := 0
	src := OnEnd(NewSamples(1, 8000, []float32{1, 2}), func() { calls++ })

	assert.Len(t, drain(src, 10), 2)
	assert.Equal(t, 1, calls)

	_, ok := src.Next()
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
