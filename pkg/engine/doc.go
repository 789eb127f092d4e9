// ABOUTME: Live playback engine package
// ABOUTME: Shares one mixing session per output device and drives all devices from one thread
// Package engine turns any number of independently produced sample streams
// into live device output.
//
// An Engine owns one event loop and the goroutine that runs it. The first
// Play on a device negotiates a format, builds a device stream and creates a
// Session; later calls for the same device mix into that session for as long
// as it is referenced. A session stays alive while a caller holds it or while
// it is still mixing a source. Once neither is true it is garbage collected,
// its device stream is destroyed, and the next Play on the device starts a
// fresh one.
//
// Example:
//
//	host := output.NewNull(output.NullConfig{Period: 20 * time.Millisecond})
//	eng := engine.New(host.EventLoop(), engine.WithLogger(logger))
//	defer eng.Close()
//
//	dev, _ := host.DefaultDevice()
//	eng.Play(dev, source.NewTone(440, 48000, 2))
package engine
