// ABOUTME: Read-ahead wrapper decoding a source on its own goroutine
// ABOUTME: Samples pass through a byte ring buffer; the reader never blocks
package source

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/smallnest/ringbuffer"
)

const (
	bytesPerSample = 4
	stagingSamples = 256
	refillInterval = 5 * time.Millisecond
)

// Buffered decodes a wrapped source ahead of playback. When the decoder
// falls behind, Next plays silence instead of waiting.
type Buffered struct {
	channels   int
	sampleRate int

	rb       *ringbuffer.RingBuffer
	finished atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	staging [stagingSamples * bytesPerSample]byte
	pos, n  int
	starved atomic.Uint64
}

// NewBuffered starts decoding src into a buffer of capacity samples
func NewBuffered(src audio.Source, capacity int) *Buffered {
	b := &Buffered{
		channels:   src.Channels(),
		sampleRate: src.SampleRate(),
		rb:         ringbuffer.New(capacity * bytesPerSample),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go b.decode(src)
	return b
}

// decode is the producer loop. It only writes whole samples, so the buffer
// length is always a multiple of bytesPerSample.
func (b *Buffered) decode(src audio.Source) {
	defer close(b.done)
	defer b.finished.Store(true)

	var chunk [stagingSamples * bytesPerSample]byte
	for {
		free := b.rb.Free() / bytesPerSample
		if free == 0 {
			select {
			case <-b.stop:
				return
			case <-time.After(refillInterval):
			}
			continue
		}
		if free > stagingSamples {
			free = stagingSamples
		}

		n := 0
		for ; n < free; n++ {
			v, ok := src.Next()
			if !ok {
				break
			}
			binary.LittleEndian.PutUint32(chunk[n*bytesPerSample:], math.Float32bits(v))
		}
		if n > 0 {
			if _, err := b.rb.Write(chunk[:n*bytesPerSample]); err != nil {
				return
			}
		}
		if n < free {
			return
		}

		select {
		case <-b.stop:
			return
		default:
		}
	}
}

// Next returns the next buffered sample. It returns silence while the
// decoder catches up and false once the wrapped source is exhausted and
// the buffer drained.
func (b *Buffered) Next() (float32, bool) {
	if b.pos >= b.n {
		// Once the decoder has finished nothing contends for the buffer lock
		var n int
		finished := b.finished.Load()
		if finished {
			n, _ = b.rb.Read(b.staging[:])
		} else {
			n, _ = b.rb.TryRead(b.staging[:])
		}
		b.pos, b.n = 0, n
		if n == 0 {
			if finished {
				return 0, false
			}
			b.starved.Add(1)
			return 0, true
		}
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(b.staging[b.pos:]))
	b.pos += bytesPerSample
	return v, true
}

func (b *Buffered) Channels() int   { return b.channels }
func (b *Buffered) SampleRate() int { return b.sampleRate }

// Starved returns the number of samples replaced by silence
func (b *Buffered) Starved() uint64 { return b.starved.Load() }

// Close stops the decoder goroutine and waits for it to exit
func (b *Buffered) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
	return nil
}
