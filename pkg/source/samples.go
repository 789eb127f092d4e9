// ABOUTME: Slice-backed source and simple source wrappers
// ABOUTME: Samples plays a fixed buffer, Take truncates and Gain scales another source
package source

import "github.com/Resonate-Protocol/playout/pkg/audio"

// Samples plays a fixed slice of interleaved samples once
type Samples struct {
	data       []float32
	pos        int
	channels   int
	sampleRate int
}

// NewSamples creates a source over data. The slice is not copied.
func NewSamples(channels, sampleRate int, data []float32) *Samples {
	return &Samples{data: data, channels: channels, sampleRate: sampleRate}
}

func (s *Samples) Next() (float32, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	v := s.data[s.pos]
	s.pos++
	return v, true
}

func (s *Samples) Channels() int   { return s.channels }
func (s *Samples) SampleRate() int { return s.sampleRate }

// Remaining returns the number of samples not yet played
func (s *Samples) Remaining() int { return len(s.data) - s.pos }

type take struct {
	audio.Source
	left int
}

// Take limits src to n samples
func Take(src audio.Source, n int) audio.Source {
	return &take{Source: src, left: n}
}

func (t *take) Next() (float32, bool) {
	if t.left <= 0 {
		return 0, false
	}
	t.left--
	return t.Source.Next()
}

type gain struct {
	audio.Source
	factor float32
}

// Gain scales every sample of src by factor
func Gain(src audio.Source, factor float32) audio.Source {
	return &gain{Source: src, factor: factor}
}

func (g *gain) Next() (float32, bool) {
	v, ok := g.Source.Next()
	return v * g.factor, ok
}
