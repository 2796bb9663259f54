package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
)

func newRenderCommand() *cobra.Command {
	var output string
	var maxDuration time.Duration
	var bank string

	renderCmd := &cobra.Command{
		Use:   "render --out <mix.wav> [--bank <bank>] <file|name>...",
		Short: "Mix sound files offline into a WAV file",
		Long: `Start every file at once and write the mixed result as 16-bit WAV at the
configured device format. The mix runs faster than real time without an
audio device and ends when the last sound finishes or --duration passes.

Example:
  riqplay render --out chord.wav c.wav e.wav g.wav`,
		Args: soundArgs(&bank),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, bank, output, maxDuration)
		},
	}

	renderCmd.Flags().StringVarP(&output, "out", "o", "", "Output WAV file")
	renderCmd.Flags().DurationVar(&maxDuration, "duration", 0, "Stop after this much audio (0 = until all sounds end)")
	renderCmd.MarkFlagRequired("out")
	addBankFlag(renderCmd, &bank)

	return renderCmd
}

func runRender(cmd *cobra.Command, args []string, bank, output string, maxDuration time.Duration) error {
	cli, err := requireCLI(cmd)
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	paths, err := cli.resolveSoundPaths(bank, args)
	if err != nil {
		return err
	}

	sink := device.NewManualSink()
	e, err := cli.newEngine(cfg, sink)
	if err != nil {
		return err
	}
	defer e.Close()

	sounds := make([]engine.Sound, 0, len(paths))
	for _, path := range paths {
		sound, err := e.LoadSound(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		sounds = append(sounds, sound)
	}
	for i, sound := range sounds {
		if err := e.PlaySound(sound); err != nil {
			return fmt.Errorf("failed to play %s: %w", paths[i], err)
		}
	}

	format := sink.Format()
	mix := renderMix(e, sink, sounds, maxFrames(format.SampleRate, maxDuration))

	wave, err := audio.WaveFromFloat32(mix, format.SampleRate, int32(format.Channels))
	if err != nil {
		return err
	}
	if err := audio.ExportWave(cli.fs, wave, output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	slog.Info("mix rendered", "output", output, "frames", wave.FrameCount, "sounds", len(sounds))
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d sounds to %s (%d frames, %s)\n",
		len(sounds), output, wave.FrameCount, wave.Duration().Round(time.Millisecond))
	return nil
}

// maxFrames converts a duration cap to frames; zero means no cap
func maxFrames(sampleRate uint32, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Seconds() * float64(sampleRate))
}

// renderMix pulls ticks until no sound plays or limit frames are mixed
func renderMix(e *engine.Engine, sink *device.ManualSink, sounds []engine.Sound, limit int) []float32 {
	format := sink.Format()
	tick := int(format.BufferFrames)
	if tick == 0 {
		tick = device.DefaultBufferFrames
	}
	channels := int(format.Channels)

	var mix []float32
	for anyPlaying(e, sounds) {
		frames := tick
		if limit > 0 {
			remaining := limit - len(mix)/channels
			if remaining <= 0 {
				break
			}
			frames = min(frames, remaining)
		}

		out, err := sink.Pull(frames)
		if err != nil {
			slog.Warn("render stopped early", "error", err)
			break
		}
		mix = append(mix, out...)
	}
	return mix
}

func anyPlaying(e *engine.Engine, sounds []engine.Sound) bool {
	for _, sound := range sounds {
		if e.IsSoundPlaying(sound) {
			return true
		}
	}
	return false
}
