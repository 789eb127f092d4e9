// ABOUTME: Tests for the playout CLI
// ABOUTME: Covers argument parsing, device lookup and offline rendering end to end
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--log-file", "", "--log-level", "error", "--priority=false"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func readWAV(t *testing.T, path string) *goaudio.IntBuffer {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseFrequencies(t *testing.T) {
	freqs, err := parseFrequencies(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{defaultToneHz}, freqs)

	freqs, err = parseFrequencies([]string{"220", "330Hz"})
	require.NoError(t, err)
	assert.Equal(t, []float64{220, 330}, freqs)

	_, err = parseFrequencies([]string{"loud"})
	assert.Error(t, err)
	_, err = parseFrequencies([]string{"-5"})
	assert.Error(t, err)
}

func TestFindDevice(t *testing.T) {
	host := output.NewNull(output.NullConfig{
		Devices: []output.NullDevice{
			{DeviceID: "a", DeviceName: "Kitchen Speaker"},
			{DeviceID: "b", DeviceName: "Desk Headphones"},
		},
	})
	defer host.Close()

	dev, err := findDevice(host, "")
	require.NoError(t, err)
	assert.Equal(t, output.DeviceID("a"), dev.ID())

	dev, err = findDevice(host, "b")
	require.NoError(t, err)
	assert.Equal(t, output.DeviceID("b"), dev.ID())

	dev, err = findDevice(host, "headphones")
	require.NoError(t, err)
	assert.Equal(t, output.DeviceID("b"), dev.ID())

	_, err = findDevice(host, "garage")
	assert.Error(t, err)
}

func TestDevicesCommand(t *testing.T) {
	out, err := runCLI(t, "--backend", "null", "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "* null")
	assert.Contains(t, out, "selected: 48000Hz/2ch/F32")
}

func TestRenderTone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	_, err := runCLI(t, "render", "--tone", "440", "--duration", "100ms",
		"--rate", "8000", "--channels", "1", "--out", path)
	require.NoError(t, err)

	buf := readWAV(t, path)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Equal(t, 8000, buf.Format.SampleRate)
	assert.Len(t, buf.Data, 800)

	peak := 0
	for _, v := range buf.Data {
		if v > peak {
			peak = v
		}
	}
	assert.InDelta(t, 16383, peak, 200, "tone plays at half scale")
}

func TestRenderLowSampleRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "low.wav")
	_, err := runCLI(t, "render", "--tone", "5", "--duration", "100ms",
		"--rate", "40", "--channels", "1", "--out", path)
	require.NoError(t, err)

	buf := readWAV(t, path)
	assert.Equal(t, 40, buf.Format.SampleRate)
	assert.Len(t, buf.Data, 4)
}

func TestRenderFileUntilEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")

	f, err := os.Create(in)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	data := make([]int, 400)
	for i := range data {
		data[i] = 8000
	}
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out.wav")
	_, err = runCLI(t, "render", "--rate", "8000", "--channels", "1", "--out", out, in)
	require.NoError(t, err)

	buf := readWAV(t, out)
	assert.GreaterOrEqual(t, len(buf.Data), 400)
	assert.LessOrEqual(t, len(buf.Data), 400+2*160)
	assert.InDelta(t, 8000, buf.Data[10], 2)
	assert.Equal(t, 0, buf.Data[len(buf.Data)-1], "silence after the file ends")
}

func TestRenderRejectsEmptyInput(t *testing.T) {
	_, err := runCLI(t, "render")
	assert.ErrorContains(t, err, "nothing to render")

	_, err = runCLI(t, "render", "--tone", "440")
	assert.ErrorContains(t, err, "--duration")
}

func TestUnknownBackend(t *testing.T) {
	_, err := runCLI(t, "--backend", "jack", "devices")
	assert.ErrorContains(t, err, "unknown backend")
}
