// ABOUTME: Audio type definitions
// ABOUTME: Defines output formats, sample encodings and the pull-based Source interface
package audio

import "fmt"

// SilenceU16 is the mid-scale value unsigned 16-bit devices treat as silence
const SilenceU16 uint16 = 32768

// Encoding is the numeric representation a device buffer expects
type Encoding int

const (
	EncodingU16 Encoding = iota
	EncodingI16
	EncodingF32
)

func (e Encoding) String() string {
	switch e {
	case EncodingU16:
		return "U16"
	case EncodingI16:
		return "I16"
	case EncodingF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// IsFloat reports whether the encoding is floating point
func (e Encoding) IsFloat() bool {
	return e == EncodingF32
}

// BytesPerSample returns the width of one sample in bytes
func (e Encoding) BytesPerSample() int {
	if e == EncodingF32 {
		return 4
	}
	return 2
}

// Format describes an output stream format
type Format struct {
	Channels   int
	SampleRate int
	Encoding   Encoding
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// Source produces interleaved, normalized float32 samples on demand.
//
// Next returns false once the source is exhausted; it is called from a
// single goroutine only.
type Source interface {
	Next() (float32, bool)
	Channels() int
	SampleRate() int
}

// F32ToI16 converts a normalized sample to signed 16-bit, clamping out-of-range input
func F32ToI16(sample float32) int16 {
	sample = clamp(sample)
	if sample >= 0 {
		return int16(sample * 32767)
	}
	return int16(sample * 32768)
}

// F32ToU16 converts a normalized sample to unsigned 16-bit with 0.0 at mid-scale
func F32ToU16(sample float32) uint16 {
	sample = clamp(sample)
	// Round to nearest so that 0.0 lands exactly on SilenceU16
	return uint16((sample+1)*0.5*65535 + 0.5)
}

// I16ToF32 converts a signed 16-bit sample to the normalized range
func I16ToF32(sample int16) float32 {
	return float32(sample) / 32768
}

func clamp(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}
