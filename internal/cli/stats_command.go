package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"riqaudio.click/internal/tracking"
)

// Stats is the full report printed by the stats command
type Stats struct {
	Summary  *tracking.UsageSummary        `json:"summary"`
	Sounds   []tracking.SoundUsage         `json:"sounds"`
	Formats  []tracking.FormatDistribution `json:"formats"`
	Failures []tracking.LoadFailure        `json:"failures"`
}

func newStatsCommand() *cobra.Command {
	var since string
	var session string
	var fileType string
	var limit int
	var asJSON bool

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded sound usage",
		Long: `Show which sounds were loaded and played, which formats were used and which
loads failed, from the usage tracking database.

--since accepts a preset (today, yesterday, week, last-week, month,
last-month, all) or natural language such as "3 days ago" or "last monday".

Examples:
  riqplay stats
  riqplay stats --since "last week"
  riqplay stats --since today --type ogg
  riqplay stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, since, session, fileType, limit, asJSON)
		},
	}

	statsCmd.Flags().StringVar(&since, "since", "", "Only events after this time")
	statsCmd.Flags().StringVar(&session, "session", "", "Only events from this session")
	statsCmd.Flags().StringVar(&fileType, "type", "", "Only this container type (wav, ogg, mp3, flac, aiff)")
	statsCmd.Flags().IntVar(&limit, "limit", 10, "Maximum sounds and failures to list")
	statsCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return statsCmd
}

func runStats(cmd *cobra.Command, since, session, fileType string, limit int, asJSON bool) error {
	slog.Debug("running stats command", "since", since, "session", session, "type", fileType, "limit", limit)

	cli, err := requireCLI(cmd)
	if err != nil {
		return err
	}

	if _, err := cli.prepare(cmd); err != nil {
		return err
	}

	if cli.trackingDB == nil {
		return fmt.Errorf("usage tracking is disabled or its database is unavailable (set RIQAUDIO_TRACKING=true)")
	}

	filter, err := tracking.FilterSince(since, time.Now())
	if err != nil {
		return fmt.Errorf("invalid --since value: %w", err)
	}
	filter.SessionID = session
	filter.FileType = fileType
	filter.Limit = limit

	stats, err := collectStats(cli.trackingDB, filter)
	if err != nil {
		return err
	}

	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	outputStats(cmd.OutOrStdout(), stats, since)
	return nil
}

func collectStats(db *sql.DB, filter tracking.QueryFilter) (*Stats, error) {
	summary, err := tracking.GetUsageSummary(db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage summary: %w", err)
	}

	sounds, err := tracking.GetSoundUsage(db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get sound usage: %w", err)
	}

	formats, err := tracking.GetFormatDistribution(db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get format distribution: %w", err)
	}

	failures, err := tracking.GetLoadFailures(db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get load failures: %w", err)
	}

	return &Stats{Summary: summary, Sounds: sounds, Formats: formats, Failures: failures}, nil
}

func outputStats(w io.Writer, stats *Stats, since string) {
	if stats.Summary.TotalEvents == 0 {
		fmt.Fprintln(w, "No usage recorded for the specified criteria.")
		if since != "" {
			fmt.Fprintln(w, "Try a wider range with --since all")
		}
		return
	}

	fmt.Fprintln(w, "Sound Usage Statistics")
	fmt.Fprintln(w, "======================")
	if since != "" {
		fmt.Fprintf(w, "Since: %s\n", since)
	} else {
		fmt.Fprintln(w, "Since: all time")
	}
	fmt.Fprintf(w, "Events: %d in %d sessions, %d distinct files\n",
		stats.Summary.TotalEvents, stats.Summary.Sessions, stats.Summary.UniqueSources)

	kinds := make([]string, 0, len(stats.Summary.KindCounts))
	for kind := range stats.Summary.KindCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-15s %d\n", kind, stats.Summary.KindCounts[kind])
	}

	if len(stats.Sounds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Most Played Sounds:")
		fmt.Fprintln(w, "-------------------")
		for i, sound := range stats.Sounds {
			fmt.Fprintf(w, "%2d. %s  played %d, loaded %d", i+1, sound.Source, sound.PlayCount, sound.LoadCount)
			if sound.LastPlayed > 0 {
				fmt.Fprintf(w, ", last %s", time.Unix(sound.LastPlayed, 0).Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(w)
		}
	}

	if len(stats.Formats) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Formats Loaded:")
		fmt.Fprintln(w, "---------------")
		for _, format := range stats.Formats {
			fmt.Fprintf(w, "  %-5s %4d  (%.1f%%)\n", format.FileType, format.Count, format.Percentage)
		}
	}

	if len(stats.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Load Failures:")
		fmt.Fprintln(w, "--------------")
		for _, failure := range stats.Failures {
			source := failure.Source
			if source == "" {
				source = "(in-memory wave)"
			}
			fmt.Fprintf(w, "  %s  x%d  %s\n", source, failure.Count, failure.Error)
		}
	}
}
