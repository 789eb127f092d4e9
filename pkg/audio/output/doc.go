// ABOUTME: Audio output package bridging the engine to device drivers
// ABOUTME: Provides Host/Device/EventLoop interfaces and malgo, oto and null backends
// Package output is the device layer the playout engine drives.
//
// A Host enumerates output devices and exposes one EventLoop. Streams are
// built on the loop for a device and a negotiated Format; each stream has a
// FillFunc that the loop invokes with a device buffer whenever the device
// needs more samples. All FillFunc calls for every stream of a loop happen
// on the goroutine executing EventLoop.Run, one at a time.
//
// Backends:
//   - Malgo: miniaudio via malgo, real devices, S16 and F32 buffers
//   - Oto: the default device via oto, S16 and F32 buffers
//   - Null: a timer driven loop for headless runs and tests, all encodings
//
// Example:
//
//	host, err := output.NewMalgo()
//	dev, err := host.DefaultDevice()
//	loop := host.EventLoop()
//	id, err := loop.BuildStream(dev, format, func(buf output.Buffer) { ... })
//	err = loop.PlayStream(id)
//	go loop.Run(ctx)
package output
