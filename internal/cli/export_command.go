package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"riqaudio.click/internal/audio"
)

func newExportCommand() *cobra.Command {
	var sampleRate uint32
	var channels uint32

	exportCmd := &cobra.Command{
		Use:   "export <input> <output.wav>",
		Short: "Decode a sound file and write it as WAV",
		Long: `Decode any supported sound file and write it as a RIFF/WAVE file.

Without flags the samples are written unchanged. --sample-rate and --channels
resample and remix to 16-bit PCM in the requested format.

Examples:
  riqplay export theme.ogg theme.wav
  riqplay export --sample-rate 22050 --channels 1 voice.flac voice.wav`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], args[1], sampleRate, channels)
		},
	}

	exportCmd.Flags().Uint32Var(&sampleRate, "sample-rate", 0, "Resample to this rate")
	exportCmd.Flags().Uint32Var(&channels, "channels", 0, "Remix to 1 or 2 channels")

	return exportCmd
}

func runExport(cmd *cobra.Command, input, output string, sampleRate, channels uint32) error {
	cli, err := requireCLI(cmd)
	if err != nil {
		return err
	}

	cfg, err := cli.prepare(cmd)
	if err != nil {
		return err
	}

	wave, err := cli.registry().LoadWave(input)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", input, err)
	}
	defer wave.Release()

	if sampleRate != 0 || channels != 0 {
		if sampleRate == 0 {
			sampleRate = wave.SampleRate
		}
		if channels == 0 {
			channels = uint32(min(wave.Channels, 2))
		}

		samples, _, err := audio.ConvertToMixFormat(wave, sampleRate, channels, cfg.ResampleQuality)
		if err != nil {
			slog.Error("failed to convert wave", "input", input, "error", err)
			return fmt.Errorf("failed to convert %s: %w", input, err)
		}

		converted, err := audio.WaveFromFloat32(samples, sampleRate, int32(channels))
		if err != nil {
			return err
		}
		wave.Release()
		wave = converted
	}

	if err := audio.ExportWave(cli.fs, wave, output); err != nil {
		return fmt.Errorf("failed to export %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s (%d Hz, %d-bit, %d channels, %d frames)\n",
		input, output, wave.SampleRate, wave.SampleSize, wave.Channels, wave.FrameCount)
	return nil
}
