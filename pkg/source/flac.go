// ABOUTME: FLAC decoding via mewkiz/flac
// ABOUTME: Decodes frame by frame and interleaves subframes
package source

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

type flacReader struct {
	stream   *flac.Stream
	channels int
	scale    float32

	frame *frame.Frame
	index int // next sample index within frame
}

// NewFLAC decodes a FLAC stream
func NewFLAC(r io.Reader) (*File, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	if info.BitsPerSample == 0 || info.NChannels == 0 {
		return nil, fmt.Errorf("invalid FLAC stream info: %d channels, %d bits", info.NChannels, info.BitsPerSample)
	}

	dec := &flacReader{
		stream:   stream,
		channels: int(info.NChannels),
		scale:    1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}
	return newFile("", dec, nil, dec.channels, int(info.SampleRate)), nil
}

func (d *flacReader) read(p []float32) (int, error) {
	n := 0
	for n+d.channels <= len(p) {
		if d.frame == nil || d.index >= int(d.frame.BlockSize) {
			f, err := d.stream.ParseNext()
			if err != nil {
				return n, err
			}
			d.frame = f
			d.index = 0
		}

		for ch := 0; ch < d.channels; ch++ {
			p[n] = float32(d.frame.Subframes[ch].Samples[d.index]) * d.scale
			n++
		}
		d.index++
	}
	return n, nil
}
