// ABOUTME: Tests for the malgo backend
// ABOUTME: Verifies mapping of miniaudio native formats
package output

import (
	"testing"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
)

func TestFormatsFromNative(t *testing.T) {
	native := []malgo.DataFormat{
		{Format: malgo.FormatS16, Channels: 2, SampleRate: 44100},
		{Format: malgo.FormatS24, Channels: 2, SampleRate: 96000},
		{Format: malgo.FormatF32, Channels: 0, SampleRate: 0},
	}

	formats := formatsFromNative(native)
	assert.Equal(t, []audio.Format{
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingI16},
		{Channels: 2, SampleRate: 44100, Encoding: audio.EncodingF32},
		{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32},
	}, formats)
}

func TestFormatsFromNativeEmpty(t *testing.T) {
	assert.Empty(t, formatsFromNative(nil))
	assert.Empty(t, formatsFromNative([]malgo.DataFormat{{Format: malgo.FormatU8, Channels: 1, SampleRate: 8000}}))
}
