// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Encoding, Source and sample conversion functions
// Package audio provides the fundamental types shared by the playout engine.
//
// This package defines:
//   - Format: an output stream format (channels, sample rate, encoding)
//   - Encoding: the device buffer sample encodings (U16, I16, F32)
//   - Source: a pull-based producer of normalized float32 samples
//
// It also provides the conversions the device feeder needs to go from the
// mixer's float32 domain into device encodings:
//
//	s16 := audio.F32ToI16(0.5)  // 16383
//	u16 := audio.F32ToU16(0.0)  // audio.SilenceU16
//
// Example:
//
//	format := audio.Format{
//	    Channels:   2,
//	    SampleRate: 48000,
//	    Encoding:   audio.EncodingF32,
//	}
package audio
