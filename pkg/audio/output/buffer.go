// ABOUTME: Typed views over device sample buffers
// ABOUTME: Buffer carries exactly one of the U16, I16 or F32 sample slices
package output

import (
	"unsafe"

	"github.com/Resonate-Protocol/playout/pkg/audio"
)

// Buffer is a write-only device buffer tagged with its sample encoding.
// Only the slice matching Encoding is set.
type Buffer struct {
	Encoding audio.Encoding
	U16      []uint16
	I16      []int16
	F32      []float32
}

// Len returns the number of sample slots in the buffer
func (b Buffer) Len() int {
	switch b.Encoding {
	case audio.EncodingU16:
		return len(b.U16)
	case audio.EncodingI16:
		return len(b.I16)
	case audio.EncodingF32:
		return len(b.F32)
	default:
		return 0
	}
}

// NewBuffer allocates a buffer of n samples
func NewBuffer(enc audio.Encoding, n int) Buffer {
	buf := Buffer{Encoding: enc}
	switch enc {
	case audio.EncodingU16:
		buf.U16 = make([]uint16, n)
	case audio.EncodingI16:
		buf.I16 = make([]int16, n)
	case audio.EncodingF32:
		buf.F32 = make([]float32, n)
	}
	return buf
}

// bufferFromBytes reinterprets a native-endian byte buffer owned by a
// driver as typed samples without copying. Trailing bytes that do not form
// a whole sample are ignored.
func bufferFromBytes(enc audio.Encoding, p []byte) Buffer {
	n := len(p) / enc.BytesPerSample()
	buf := Buffer{Encoding: enc}
	if n == 0 {
		return buf
	}
	ptr := unsafe.Pointer(&p[0])
	switch enc {
	case audio.EncodingU16:
		buf.U16 = unsafe.Slice((*uint16)(ptr), n)
	case audio.EncodingI16:
		buf.I16 = unsafe.Slice((*int16)(ptr), n)
	case audio.EncodingF32:
		buf.F32 = unsafe.Slice((*float32)(ptr), n)
	}
	return buf
}

// silence writes the encoding's silence value into every slot
func silence(buf Buffer) {
	switch buf.Encoding {
	case audio.EncodingU16:
		for i := range buf.U16 {
			buf.U16[i] = audio.SilenceU16
		}
	case audio.EncodingI16:
		clear(buf.I16)
	case audio.EncodingF32:
		clear(buf.F32)
	}
}
