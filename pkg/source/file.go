// ABOUTME: Decoded file source shared by the MP3, FLAC and WAV decoders
// ABOUTME: Open selects a decoder from the file extension
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// decodeChunk is the number of samples decoded per refill
const decodeChunk = 4096

// ErrUnsupportedFile is returned by Open for an unknown file extension
var ErrUnsupportedFile = errors.New("unsupported audio file")

// chunkReader decodes interleaved normalized samples into p. It returns
// io.EOF once the stream is finished.
type chunkReader interface {
	read(p []float32) (int, error)
}

// File is a decoded audio stream
type File struct {
	name       string
	dec        chunkReader
	closer     io.Closer
	channels   int
	sampleRate int

	buf    []float32
	pos, n int
	err    error
}

func newFile(name string, dec chunkReader, closer io.Closer, channels, sampleRate int) *File {
	return &File{
		name:       name,
		dec:        dec,
		closer:     closer,
		channels:   channels,
		sampleRate: sampleRate,
		buf:        make([]float32, decodeChunk),
	}
}

// Open decodes the file at path, choosing the decoder by extension
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var file *File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		file, err = NewMP3(f)
	case ".flac":
		file, err = NewFLAC(f)
	case ".wav":
		file, err = NewWAV(f)
	default:
		err = fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupportedFile, ext)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	file.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	file.closer = f
	return file, nil
}

// Next returns the next decoded sample. A decode error ends the stream;
// check Err afterwards.
func (f *File) Next() (float32, bool) {
	if f.pos >= f.n {
		if f.err != nil {
			return 0, false
		}
		f.n, f.err = f.dec.read(f.buf)
		f.pos = 0
		if f.n == 0 {
			if f.err == nil {
				f.err = io.ErrNoProgress
			}
			return 0, false
		}
	}
	v := f.buf[f.pos]
	f.pos++
	return v, true
}

func (f *File) Channels() int   { return f.channels }
func (f *File) SampleRate() int { return f.sampleRate }

// Name returns the file name without extension, or "" for streams not
// opened with Open
func (f *File) Name() string { return f.name }

// Err returns the error that ended decoding, or nil for a clean end of stream
func (f *File) Err() error {
	if errors.Is(f.err, io.EOF) {
		return nil
	}
	return f.err
}

// Close releases the underlying file
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
