// ABOUTME: MP3 decoding via go-mp3
// ABOUTME: go-mp3 always produces 16-bit little-endian stereo
package source

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

type mp3Reader struct {
	decoder *mp3.Decoder
	raw     []byte
}

// NewMP3 decodes an MP3 stream
func NewMP3(r io.Reader) (*File, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return newFile("", &mp3Reader{decoder: decoder}, nil, 2, decoder.SampleRate()), nil
}

func (m *mp3Reader) read(p []float32) (int, error) {
	need := len(p) * 2
	if cap(m.raw) < need {
		m.raw = make([]byte, need)
	}
	raw := m.raw[:need]

	n, err := io.ReadFull(m.decoder, raw)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		p[i] = audio.I16ToF32(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return samples, err
}
