// ABOUTME: Device layer interface definitions
// ABOUTME: Common interfaces for audio hosts, devices and event loops
package output

import (
	"context"
	"errors"

	"github.com/Resonate-Protocol/playout/pkg/audio"
)

var (
	// ErrUnknownStream is returned for a StreamID the loop does not own
	ErrUnknownStream = errors.New("unknown stream")

	// ErrUnsupportedFormat is returned when a backend cannot open a format
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNoDevices is returned when a host has no output device
	ErrNoDevices = errors.New("no output devices")
)

// DeviceID uniquely names an output endpoint within a host
type DeviceID string

// StreamID identifies a stream built on an EventLoop
type StreamID uint64

// Device represents an audio output endpoint
type Device interface {
	// ID returns the stable identity of the device
	ID() DeviceID

	// Name returns a human-readable device name
	Name() string

	// SupportedFormats lists the formats the device accepts, in device order
	SupportedFormats() ([]audio.Format, error)
}

// FillFunc fills a device buffer. It runs on the event loop goroutine and
// must not block.
type FillFunc func(buf Buffer)

// EventLoop multiplexes buffer-ready events of all its streams onto the
// goroutine that calls Run
type EventLoop interface {
	// BuildStream opens a stream on dev with the given format. The stream
	// stays paused until PlayStream is called.
	BuildStream(dev Device, format audio.Format, fill FillFunc) (StreamID, error)

	// PlayStream starts delivering buffer-ready events for the stream
	PlayStream(id StreamID) error

	// DestroyStream stops and releases the stream. Safe to call from any goroutine.
	DestroyStream(id StreamID)

	// Run dispatches buffer-ready events until ctx is done
	Run(ctx context.Context) error
}

// Host represents an audio backend
type Host interface {
	// Devices lists the available output devices
	Devices() ([]Device, error)

	// DefaultDevice returns the system default output device
	DefaultDevice() (Device, error)

	// EventLoop returns the host's event loop
	EventLoop() EventLoop

	// Close releases backend resources
	Close() error
}

var errAlreadyRunning = errors.New("event loop already running")
