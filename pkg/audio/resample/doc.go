// ABOUTME: Audio conversion package using linear interpolation
// ABOUTME: Adapts sources to a target channel count and sample rate
// Package resample adapts audio sources to a fixed output format.
//
// Uses linear interpolation for converting between sample rates and
// duplicates or drops channels to match the requested channel count.
// Handles both upsampling and downsampling.
//
// Example:
//
//	src := resample.Uniform(mp3Source, 2, 48000)
//	sample, ok := src.Next()
package resample
