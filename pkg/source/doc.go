// ABOUTME: Sample producers for the playback engine
// ABOUTME: Generators, wrappers and file decoders implementing audio.Source
// Package source provides audio.Source implementations.
//
// Generators:
//   - Tone: an endless sine wave
//   - Samples: a fixed slice of interleaved samples
//
// Wrappers:
//   - Take: limits a source to a number of samples
//   - Gain: scales a source
//   - Buffered: decodes ahead on its own goroutine so file I/O stays off the
//     driver thread
//
// Decoders (Open picks one by file extension):
//   - MP3 via go-mp3
//   - FLAC via mewkiz/flac
//   - WAV via go-audio/wav
package source
