// ABOUTME: Device listing and live playback commands
// ABOUTME: devices prints outputs, tone and play mix sources onto one device
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/playout/internal/ui"
	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/engine"
	"github.com/Resonate-Protocol/playout/pkg/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultToneHz = 440

// track is one source queued for playback
type track struct {
	name  string
	src   audio.Source
	close func()
}

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List output devices and their negotiated formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := openHost(a.cfg)
			if err != nil {
				return err
			}
			defer host.Close()

			devices, err := host.Devices()
			if err != nil {
				return err
			}
			def, _ := host.DefaultDevice()

			out := cmd.OutOrStdout()
			for _, d := range devices {
				marker := " "
				if def != nil && def.ID() == d.ID() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\n", marker, d.ID(), d.Name())

				formats, err := d.SupportedFormats()
				if err != nil {
					fmt.Fprintf(out, "    error: %v\n", err)
					continue
				}
				for _, f := range formats {
					fmt.Fprintf(out, "    %s\n", f)
				}
				if best, err := engine.SelectFormat(formats); err == nil {
					fmt.Fprintf(out, "    selected: %s\n", best)
				}
			}
			return nil
		},
	}
}

func (a *app) toneCommand() *cobra.Command {
	var duration time.Duration
	var gain float32

	cmd := &cobra.Command{
		Use:   "tone [frequency...]",
		Short: "Play sine tones, one source per frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			freqs, err := parseFrequencies(args)
			if err != nil {
				return err
			}

			return a.playback(cmd.Context(), duration, func(format audio.Format) ([]track, error) {
				tracks := make([]track, len(freqs))
				for i, f := range freqs {
					tone := source.NewTone(f, format.SampleRate, format.Channels)
					tracks[i] = track{
						name: fmt.Sprintf("Tone %.0f Hz", f),
						src:  source.Gain(tone, gain/float32(len(freqs))),
					}
				}
				return tracks, nil
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().Float32Var(&gain, "gain", 1, "Overall gain, shared between the tones")
	return cmd
}

func (a *app) playCommand() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "play file...",
		Short: "Play MP3, FLAC or WAV files mixed together",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.playback(cmd.Context(), duration, func(audio.Format) ([]track, error) {
				var tracks []track
				for _, path := range args {
					t, err := a.openTrack(path)
					if err != nil {
						closeTracks(tracks)
						return nil, err
					}
					tracks = append(tracks, t)
				}
				return tracks, nil
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: when all files end)")
	return cmd
}

// openTrack opens path and decodes it ahead of playback
func (a *app) openTrack(path string) (track, error) {
	f, err := source.Open(path)
	if err != nil {
		return track{}, err
	}

	t := track{name: f.Name(), src: f}
	readAhead := a.cfg.ReadAheadSamples(f.SampleRate(), f.Channels())
	if readAhead == 0 {
		t.close = func() { a.closeFile(f) }
		return t, nil
	}

	b := source.NewBuffered(f, readAhead)
	t.src = b
	t.close = func() {
		_ = b.Close()
		if n := b.Starved(); n > 0 {
			a.logger.Warn("Decoder fell behind playback",
				zap.String("file", f.Name()),
				zap.Uint64("silent_samples", n))
		}
		a.closeFile(f)
	}
	return t, nil
}

func (a *app) closeFile(f *source.File) {
	if err := f.Err(); err != nil {
		a.logger.Error("Decoding stopped early", zap.String("file", f.Name()), zap.Error(err))
	}
	_ = f.Close()
}

func closeTracks(tracks []track) {
	for _, t := range tracks {
		if t.close != nil {
			t.close()
		}
	}
}

// playback plays the tracks built for the negotiated format on the
// configured device until they all end, duration elapses, the user quits
// or the process is interrupted
func (a *app) playback(ctx context.Context, duration time.Duration, build func(audio.Format) ([]track, error)) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	host, err := openHost(a.cfg)
	if err != nil {
		return err
	}
	defer host.Close()

	dev, err := findDevice(host, a.cfg.Device)
	if err != nil {
		return err
	}

	// Tracks close after the engine stops reading them
	var tracks []track
	defer func() { closeTracks(tracks) }()

	eng, stopEngine := a.startEngine(host.EventLoop())
	defer stopEngine()

	// Holding the session keeps the device stream open between tracks
	sess, err := eng.Session(dev)
	if err != nil {
		return err
	}

	tracks, err = build(sess.Format())
	if err != nil {
		return err
	}

	finished := make(chan string, len(tracks))
	meters := make([]*source.Meter, len(tracks))
	names := make([]string, len(tracks))
	for i, t := range tracks {
		name := t.name
		meters[i] = source.NewMeter(t.src)
		names[i] = name
		eng.Play(dev, source.OnEnd(meters[i], func() { finished <- name }))
		a.logger.Info("Playing", zap.String("source", name), zap.String("device", dev.Name()))
	}

	var quit <-chan ui.QuitMsg
	if a.cfg.TUI {
		stopTUI, q := a.startTUI(ctx, eng, dev.Name(), names, meters)
		defer stopTUI()
		quit = q
	}

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	for remaining := len(tracks); remaining > 0; {
		select {
		case name := <-finished:
			a.logger.Info("Finished", zap.String("source", name))
			remaining--
		case <-timeout:
			a.logger.Info("Playback duration reached", zap.Duration("duration", duration))
			remaining = 0
		case <-quit:
			a.logger.Info("Received quit signal from TUI")
			remaining = 0
		case <-ctx.Done():
			a.logger.Info("Shutdown signal received")
			remaining = 0
		}
	}

	runtime.KeepAlive(sess)
	return nil
}

// parseFrequencies parses tone frequencies in Hz, defaulting to A4
func parseFrequencies(args []string) ([]float64, error) {
	if len(args) == 0 {
		return []float64{defaultToneHz}, nil
	}
	freqs := make([]float64, len(args))
	for i, arg := range args {
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(arg), "hz"), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid frequency %q", arg)
		}
		freqs[i] = f
	}
	return freqs, nil
}
