// ABOUTME: Output format negotiation
// ABOUTME: Picks one stream format from a device's advertised list
package engine

import (
	"errors"

	"github.com/Resonate-Protocol/playout/pkg/audio"
)

// ErrNoSupportedFormats is returned for a device that advertises no format.
// No session can ever be created for such a device.
var ErrNoSupportedFormats = errors.New("device reports no supported formats")

// MinPreferredRate is the lowest sample rate preferred over any other
const MinPreferredRate = 44100

// SelectFormat picks a format from a device's list in a single ordered pass.
// A candidate replaces the current choice when it is floating point and the
// current choice is not; failing that, when the current choice runs below
// MinPreferredRate; failing that, when it is stereo and the current choice
// is not. Otherwise the earlier format wins.
func SelectFormat(formats []audio.Format) (audio.Format, error) {
	if len(formats) == 0 {
		return audio.Format{}, ErrNoSupportedFormats
	}

	best := formats[0]
	for _, f := range formats[1:] {
		if better(f, best) {
			best = f
		}
	}
	return best, nil
}

func better(c, best audio.Format) bool {
	switch {
	case c.Encoding.IsFloat() && !best.Encoding.IsFloat():
		return true
	case best.SampleRate < MinPreferredRate:
		return true
	case c.Channels == 2 && best.Channels != 2:
		return true
	default:
		return false
	}
}
