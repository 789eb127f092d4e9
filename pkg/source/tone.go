// ABOUTME: Sine tone generator
// ABOUTME: Produces the same endless sine wave on every channel
package source

import "math"

// Tone generates an endless sine wave
type Tone struct {
	frequency  float64
	amplitude  float32
	sampleRate int
	channels   int

	frameIndex uint64
	channel    int
	current    float32
}

// NewTone creates a sine wave at frequency Hz with amplitude 0.5
func NewTone(frequency float64, sampleRate, channels int) *Tone {
	return &Tone{
		frequency:  frequency,
		amplitude:  0.5,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Next returns the next interleaved sample; it never ends
func (t *Tone) Next() (float32, bool) {
	if t.channel == 0 {
		phase := float64(t.frameIndex) / float64(t.sampleRate)
		t.current = t.amplitude * float32(math.Sin(2*math.Pi*t.frequency*phase))
		t.frameIndex++
	}
	t.channel = (t.channel + 1) % t.channels
	return t.current, true
}

func (t *Tone) Channels() int   { return t.channels }
func (t *Tone) SampleRate() int { return t.sampleRate }
