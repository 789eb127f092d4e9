// ABOUTME: WAV decoding via go-audio/wav
// ABOUTME: Supports 16, 24 and 32-bit integer PCM
package source

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavReader struct {
	decoder *wav.Decoder
	buf     *goaudio.IntBuffer
	scale   float32
}

// NewWAV decodes a PCM WAV stream
func NewWAV(r io.ReadSeeker) (*File, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", decoder.BitDepth)
	}
	if decoder.NumChans == 0 {
		return nil, errors.New("WAV file has no channels")
	}

	dec := &wavReader{
		decoder: decoder,
		buf: &goaudio.IntBuffer{
			Data: make([]int, decodeChunk),
			Format: &goaudio.Format{
				SampleRate:  int(decoder.SampleRate),
				NumChannels: int(decoder.NumChans),
			},
		},
		scale: 1 / float32(int64(1)<<(decoder.BitDepth-1)),
	}
	return newFile("", dec, nil, int(decoder.NumChans), int(decoder.SampleRate)), nil
}

func (d *wavReader) read(p []float32) (int, error) {
	if len(d.buf.Data) > len(p) {
		d.buf.Data = d.buf.Data[:len(p)]
	}

	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read WAV PCM data: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range d.buf.Data[:n] {
		p[i] = float32(v) * d.scale
	}
	return n, nil
}
