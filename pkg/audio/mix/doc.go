// ABOUTME: Dynamic mixer package combining live audio sources
// ABOUTME: Provides a producer-side Controller and a consumer-side Mixer
// Package mix combines any number of audio sources into one interleaved
// stream at a fixed channel count and sample rate.
//
// New returns the two halves of a mixer. The Controller may be shared by
// any number of goroutines adding sources; the Mixer is read by exactly one
// goroutine (the device feeder). Reading never blocks on producers: new
// sources are picked up with a non-blocking lock attempt and an empty mix
// reports an underrun instead of waiting.
//
// Example:
//
//	ctrl, mixer := mix.New(2, 48000)
//	ctrl.Add(source.NewTone(440, 48000, 2, 0.5))
//	sample, ok := mixer.Next()
package mix
