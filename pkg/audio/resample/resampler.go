// ABOUTME: Streaming linear resampler and channel converter for float32 sources
// ABOUTME: Used to bring every mixer input to the session's channel count and rate
package resample

import "github.com/Resonate-Protocol/playout/pkg/audio"

// Uniform returns src converted to the given channel count and sample rate.
// A source that already matches is returned unchanged.
func Uniform(src audio.Source, channels, sampleRate int) audio.Source {
	if src.Channels() != channels {
		src = NewChannelConverter(src, channels)
	}
	if src.SampleRate() != sampleRate {
		src = New(src, sampleRate)
	}
	return src
}

// ChannelConverter changes the channel count of an interleaved source
type ChannelConverter struct {
	src    audio.Source
	from   int
	to     int
	frame  []float32
	outIdx int
	done   bool
}

// NewChannelConverter creates a converter producing `channels` channels.
// Upmixing repeats input channels in order; downmixing to mono averages
// all input channels, otherwise extra input channels are dropped.
func NewChannelConverter(src audio.Source, channels int) *ChannelConverter {
	from := src.Channels()
	if from < 1 {
		from = 1
	}
	return &ChannelConverter{
		src:    src,
		from:   from,
		to:     channels,
		frame:  make([]float32, from),
		outIdx: channels,
	}
}

func (c *ChannelConverter) Next() (float32, bool) {
	if c.done {
		return 0, false
	}
	if c.outIdx == c.to {
		if !readFrame(c.src, c.frame) {
			c.done = true
			return 0, false
		}
		c.outIdx = 0
	}

	var sample float32
	if c.to == 1 && c.from > 1 {
		for _, s := range c.frame {
			sample += s
		}
		sample /= float32(c.from)
	} else {
		sample = c.frame[c.outIdx%c.from]
	}
	c.outIdx++
	return sample, true
}

func (c *ChannelConverter) Channels() int   { return c.to }
func (c *ChannelConverter) SampleRate() int { return c.src.SampleRate() }

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	src        audio.Source
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	current    []float32 // one sample per channel
	next       []float32
	outIdx     int
	primed     bool
	done       bool
}

// New creates a resampler that reads src and produces frames at outputRate
func New(src audio.Source, outputRate int) *Resampler {
	channels := src.Channels()
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		src:        src,
		inputRate:  src.SampleRate(),
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(src.SampleRate()) / float64(outputRate),
		current:    make([]float32, channels),
		next:       make([]float32, channels),
	}
}

func (r *Resampler) Next() (float32, bool) {
	if r.done {
		return 0, false
	}
	if !r.primed {
		if !readFrame(r.src, r.current) || !readFrame(r.src, r.next) {
			r.done = true
			return 0, false
		}
		r.primed = true
	}

	if r.outIdx == r.channels {
		// Advance to the next output frame
		r.outIdx = 0
		r.position += r.ratio
		for r.position >= 1 {
			r.current, r.next = r.next, r.current
			if !readFrame(r.src, r.next) {
				r.done = true
				return 0, false
			}
			r.position--
		}
	}

	// Linear interpolation
	frac := float32(r.position)
	ch := r.outIdx
	r.outIdx++
	return r.current[ch]*(1-frac) + r.next[ch]*frac, true
}

func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) SampleRate() int { return r.outputRate }

// OutputFramesFor estimates how many output frames are produced from inputFrames
func (r *Resampler) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}

// readFrame fills frame from src. A partial trailing frame is zero padded;
// false means no sample could be read at all.
func readFrame(src audio.Source, frame []float32) bool {
	for i := range frame {
		s, ok := src.Next()
		if !ok {
			if i == 0 {
				return false
			}
			for j := i; j < len(frame); j++ {
				frame[j] = 0
			}
			return true
		}
		frame[i] = s
	}
	return true
}
