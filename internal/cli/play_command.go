package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
)

// pollInterval is how often a real-time sink is checked for a finished sound
const pollInterval = 10 * time.Millisecond

func newPlayCommand() *cobra.Command {
	var pan float32
	var interactive bool
	var bank string

	playCmd := &cobra.Command{
		Use:   "play [--bank <bank>] <file|name>...",
		Short: "Play sound files",
		Long: `Play sound files one after another, waiting for each to finish.

With --interactive the files are loaded once and triggered from the keyboard:
keys 1-9 play the matching file, space repeats the last one, s stops
everything and q quits.

With --bank the arguments name sounds in a bank directory or JSON bank file.
Without arguments every sound in the bank is loaded, in name order.

Examples:
  riqplay play click.wav
  riqplay play --pan 0.2 left.ogg
  riqplay play --interactive kick.wav snare.wav hat.flac
  riqplay play --interactive --bank ~/samples/drums`,
		Args: soundArgs(&bank),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args, bank, pan, interactive)
		},
	}

	playCmd.Flags().Float32Var(&pan, "pan", 0.5, "Stereo position (0.0 = right, 0.5 = center, 1.0 = left)")
	playCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Trigger sounds from the keyboard")
	addBankFlag(playCmd, &bank)

	return playCmd
}

func runPlay(cmd *cobra.Command, args []string, bank string, pan float32, interactive bool) error {
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

	e, sink, err := cli.newPlaybackEngine(cfg)
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
		if err := e.SetSoundPan(sound, pan); err != nil {
			return err
		}
		sounds = append(sounds, sound)
	}

	if interactive {
		return cli.runInteractive(cmd, e, sink, paths, sounds)
	}

	out := cmd.OutOrStdout()
	for i, sound := range sounds {
		if err := e.PlaySound(sound); err != nil {
			return fmt.Errorf("failed to play %s: %w", paths[i], err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), playTimeout(sound))
		err := waitForSound(ctx, e, sound, sink)
		cancel()
		if err != nil {
			return fmt.Errorf("playback of %s did not finish: %w", paths[i], err)
		}

		fmt.Fprintf(out, "played %s (%s)\n", paths[i], soundDuration(sound).Round(time.Millisecond))
	}

	slog.Info("playback finished", "sounds", len(sounds), "sink", sink.Name())
	return nil
}

// soundDuration is the length of the source wave
func soundDuration(s engine.Sound) time.Duration {
	if s.Stream.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.FrameCount) * time.Second / time.Duration(s.Stream.SampleRate)
}

func playTimeout(s engine.Sound) time.Duration {
	return 2*soundDuration(s) + 2*time.Second
}

// waitForSound blocks until s stops playing. A manual sink has no audio
// thread, so it is pulled here until the sound finishes.
func waitForSound(ctx context.Context, e *engine.Engine, s engine.Sound, sink device.Sink) error {
	if manual, ok := sink.(*device.ManualSink); ok {
		frames := int(manual.Format().BufferFrames)
		if frames == 0 {
			frames = device.DefaultBufferFrames
		}
		for e.IsSoundPlaying(s) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := manual.Pull(frames); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for e.IsSoundPlaying(s) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// runInteractive puts the terminal in raw mode and triggers sounds on key presses
func (c *CLI) runInteractive(cmd *cobra.Command, e *engine.Engine, sink device.Sink, paths []string, sounds []engine.Sound) error {
	file, ok := cmd.InOrStdin().(*os.File)
	if !ok || !c.isInteractiveTerminal(int(file.Fd())) {
		slog.Error("interactive mode requires a terminal on stdin")
		return fmt.Errorf("--interactive requires a terminal on stdin")
	}

	if _, manual := sink.(*device.ManualSink); manual {
		return fmt.Errorf("--interactive needs a real-time backend, not %q", sink.Name())
	}

	fd := int(file.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		slog.Error("failed to switch terminal to raw mode", "error", err)
		return fmt.Errorf("failed to switch terminal to raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	out := cmd.OutOrStdout()
	for i, path := range paths {
		if i >= 9 {
			fmt.Fprintf(out, "   %s (no key)\r\n", filepath.Base(path))
			continue
		}
		fmt.Fprintf(out, "%d  %s\r\n", i+1, filepath.Base(path))
	}
	fmt.Fprint(out, "space repeats, s stops, q quits\r\n")

	return triggerLoop(file, e, sounds)
}

// triggerLoop reads single key presses from r until q, Esc, Ctrl-C or EOF
func triggerLoop(r io.Reader, e *engine.Engine, sounds []engine.Sound) error {
	buf := make([]byte, 1)
	last := -1

	trigger := func(index int) {
		if err := e.PlaySound(sounds[index]); err != nil {
			slog.Warn("failed to trigger sound", "index", index, "error", err)
			return
		}
		last = index
	}

	for {
		n, err := r.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		if n == 0 {
			continue
		}

		switch key := buf[0]; {
		case key == 'q' || key == 0x1b || key == 0x03:
			return nil
		case key == ' ':
			if last >= 0 {
				trigger(last)
			}
		case key == 's':
			for _, sound := range sounds {
				if err := e.StopSound(sound); err != nil {
					slog.Warn("failed to stop sound", "buffer", sound.Stream.Buffer, "error", err)
				}
			}
		case key >= '1' && key <= '9':
			if index := int(key - '1'); index < len(sounds) {
				trigger(index)
			}
		}
	}
}
