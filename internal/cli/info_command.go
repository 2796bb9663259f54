package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"riqaudio.click/internal/audio"
)

// WaveInfo describes a decoded sound file
type WaveInfo struct {
	Path       string        `json:"path"`
	FileType   string        `json:"file_type"`
	SampleRate uint32        `json:"sample_rate"`
	SampleSize uint32        `json:"sample_size"`
	Channels   int32         `json:"channels"`
	Frames     uint32        `json:"frames"`
	Duration   time.Duration `json:"duration_ns"`
}

func newInfoCommand() *cobra.Command {
	var asJSON bool

	infoCmd := &cobra.Command{
		Use:   "info <file>...",
		Short: "Show the format of sound files",
		Long: `Decode sound files and print their sample rate, sample size, channel
count, frame count and duration. No audio device is opened.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args, asJSON)
		},
	}

	infoCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return infoCmd
}

func runInfo(cmd *cobra.Command, paths []string, asJSON bool) error {
	cli, err := requireCLI(cmd)
	if err != nil {
		return err
	}

	registry := cli.registry()

	infos := make([]WaveInfo, 0, len(paths))
	for _, path := range paths {
		info, err := describeWave(cli.fs, registry, path)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		printWaveInfo(cmd.OutOrStdout(), info)
	}
	return nil
}

func describeWave(fs afero.Fs, registry *audio.DecoderRegistry, path string) (WaveInfo, error) {
	wave, err := registry.LoadWave(path)
	if err != nil {
		slog.Error("failed to decode sound file", "path", path, "error", err)
		return WaveInfo{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer wave.Release()

	fileType := audio.FileTypeFromPath(path)
	if fileType == audio.FileTypeUnknown {
		if data, err := afero.ReadFile(fs, path); err == nil {
			fileType = audio.DetectFileType(data)
		}
	}

	return WaveInfo{
		Path:       path,
		FileType:   fileType.String(),
		SampleRate: wave.SampleRate,
		SampleSize: wave.SampleSize,
		Channels:   wave.Channels,
		Frames:     wave.FrameCount,
		Duration:   wave.Duration(),
	}, nil
}

func printWaveInfo(w io.Writer, info WaveInfo) {
	fmt.Fprintf(w, "file:        %s\n", info.Path)
	fmt.Fprintf(w, "format:      %s\n", info.FileType)
	fmt.Fprintf(w, "sample rate: %d Hz\n", info.SampleRate)
	fmt.Fprintf(w, "sample size: %d bit\n", info.SampleSize)
	fmt.Fprintf(w, "channels:    %d\n", info.Channels)
	fmt.Fprintf(w, "frames:      %d\n", info.Frames)
	fmt.Fprintf(w, "duration:    %s\n", info.Duration.Round(time.Millisecond))
}
