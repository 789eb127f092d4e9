// ABOUTME: Offline render command
// ABOUTME: Mixes sources through the engine on a pumped null device and writes a WAV file
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/Resonate-Protocol/playout/pkg/source"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	renderDeviceID = "render"
	renderChunk    = 20 * time.Millisecond
	renderBitDepth = 16
)

type renderOptions struct {
	out        string
	duration   time.Duration
	sampleRate int
	channels   int
	tones      []float64
}

func (a *app) renderCommand() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render [file...]",
		Short: "Mix files and tones into a 16-bit WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(opts.tones) == 0 {
				return errors.New("nothing to render: pass files or --tone")
			}
			if opts.duration <= 0 && len(opts.tones) > 0 {
				return errors.New("--duration is required when rendering tones")
			}
			if opts.sampleRate < 1 || opts.channels < 1 {
				return fmt.Errorf("invalid output format %dHz/%dch", opts.sampleRate, opts.channels)
			}
			return a.render(opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "render.wav", "Output WAV file")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Length of the render (default: until all files end)")
	cmd.Flags().IntVar(&opts.sampleRate, "rate", 48000, "Output sample rate")
	cmd.Flags().IntVar(&opts.channels, "channels", 2, "Output channel count")
	cmd.Flags().Float64SliceVar(&opts.tones, "tone", nil, "Add a sine tone at this frequency (repeatable)")
	return cmd
}

func (a *app) render(opts renderOptions, paths []string) error {
	format := audio.Format{
		Channels:   opts.channels,
		SampleRate: opts.sampleRate,
		Encoding:   audio.EncodingI16,
	}
	null := output.NewNull(output.NullConfig{
		Devices: []output.NullDevice{{
			DeviceID:   renderDeviceID,
			DeviceName: "WAV Render",
			Formats:    []audio.Format{format},
		}},
	})
	defer null.Close()
	dev, _ := null.DefaultDevice()

	var files []*source.File
	defer func() {
		for _, f := range files {
			a.closeFile(f)
		}
	}()

	eng, stopEngine := a.startEngine(null)
	defer stopEngine()

	sess, err := eng.Session(dev)
	if err != nil {
		return err
	}

	var pending atomic.Int64
	for _, path := range paths {
		f, err := source.Open(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		pending.Add(1)
		sess.Add(source.OnEnd(f, func() { pending.Add(-1) }))
	}
	for _, freq := range opts.tones {
		tone := source.NewTone(freq, format.SampleRate, format.Channels)
		sess.Add(source.Gain(tone, 1/float32(len(opts.tones)+len(paths))))
	}

	out, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	enc := wav.NewEncoder(out, format.SampleRate, renderBitDepth, format.Channels, 1)

	total := -1
	if opts.duration > 0 {
		total = int(opts.duration.Seconds() * float64(format.SampleRate))
	}
	chunk := max(int(renderChunk.Seconds()*float64(format.SampleRate)), 1)

	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		SourceBitDepth: renderBitDepth,
	}

	frames := 0
	for total < 0 || frames < total {
		// Without a duration, stop at the first chunk after every file ended
		if total < 0 && pending.Load() == 0 {
			break
		}
		n := chunk
		if total >= 0 && total-frames < n {
			n = total - frames
		}

		buf, err := null.Pump(sess.Stream(), n)
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to render: %w", err)
		}
		ib.Data = ib.Data[:0]
		for _, s := range buf.I16 {
			ib.Data = append(ib.Data, int(s))
		}
		if err := enc.Write(ib); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to write WAV data: %w", err)
		}
		frames += n
	}
	runtime.KeepAlive(sess)

	if err := enc.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	a.logger.Info("Render complete",
		zap.String("file", opts.out),
		zap.Stringer("format", format),
		zap.Duration("length", time.Duration(frames)*time.Second/time.Duration(format.SampleRate)))
	return nil
}
