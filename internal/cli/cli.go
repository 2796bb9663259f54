package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/config"
	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
	"riqaudio.click/internal/tracking"
)

const Version = "0.4.0"

type contextKey struct{}

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	fs               afero.Fs
	configManager    *config.ConfigManager
	sinkFactory      device.SinkFactory
	terminalDetector TerminalDetector
	trackingDB       *sql.DB // Optional tracking database
	sessionID        string
}

// NewCLI creates a new CLI instance on the OS filesystem
func NewCLI() *CLI {
	return NewCLIWithFilesystem(afero.NewOsFs())
}

// NewCLIWithFilesystem creates a CLI whose sound files, exports and config
// files live on fs
func NewCLIWithFilesystem(fs afero.Fs) *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:           "riqplay",
		Short:         "RIQAudio sound player",
		Long:          "riqplay loads sound files with the RIQAudio engine and plays, inspects, converts or renders them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newVersionCommand())

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("volume", "", "Set master volume (0.0 to 1.0)")
	rootCmd.PersistentFlags().String("backend", "", "Audio backend (auto, malgo, oto, null, manual)")
	rootCmd.PersistentFlags().Bool("no-tracking", false, "Do not record usage events")

	return &CLI{
		rootCmd:   rootCmd,
		fs:        fs,
		sessionID: fmt.Sprintf("riqplay-%d-%d", os.Getpid(), time.Now().UnixNano()),
	}
}

// contextWithCLI stores CLI instance in context for command handlers
func contextWithCLI(cli *CLI) context.Context {
	return context.WithValue(context.Background(), contextKey{}, cli)
}

// cliFromContext extracts CLI instance from context
func cliFromContext(ctx context.Context) *CLI {
	if ctx == nil {
		return nil
	}
	if cli, ok := ctx.Value(contextKey{}).(*CLI); ok {
		return cli
	}
	return nil
}

// requireCLI is the first step of every command handler
func requireCLI(cmd *cobra.Command) (*CLI, error) {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		slog.Error("CLI instance not found in context")
		return nil, fmt.Errorf("CLI instance not found in context")
	}
	return cli, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "riqplay version %s\nRIQAudio minimal audio engine\n", Version)
}

// loadAndValidateConfig loads configuration from flags and files, applies overrides, and validates
func loadAndValidateConfig(cmd *cobra.Command, cli *CLI) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	volumeStr, _ := cmd.Flags().GetString("volume")
	backend, _ := cmd.Flags().GetString("backend")
	noTracking, _ := cmd.Flags().GetBool("no-tracking")

	var volume float64
	if volumeStr != "" {
		vol, err := strconv.ParseFloat(volumeStr, 64)
		if err != nil {
			slog.Error("invalid volume value", "value", volumeStr, "error", err)
			return nil, fmt.Errorf("invalid volume value '%s': %w", volumeStr, err)
		}
		volume = vol
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = cli.configManager.LoadFromFile(configFile)
		if err != nil {
			slog.Error("config file load failed", "file", configFile, "error", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		cfg, err = cli.configManager.LoadConfig()
		if err != nil {
			slog.Error("config load failed", "error", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = cli.configManager.ApplyEnvironmentOverrides(cfg)

	// Command line flags win over file and environment
	if volumeStr != "" {
		cfg.Volume = volume
		slog.Debug("volume override applied", "value", volume)
	}
	if backend != "" {
		cfg.AudioBackend = backend
		slog.Debug("backend override applied", "value", backend)
	}
	if noTracking {
		cfg.Tracking = &config.TrackingConfig{Enabled: false}
		slog.Debug("tracking disabled by flag")
	}

	err = cli.configManager.ValidateConfig(cfg)
	if err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// prepare loads configuration, configures logging and opens the tracking
// database. Commands that touch the engine call it first.
func (c *CLI) prepare(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadAndValidateConfig(cmd, c)
	if err != nil {
		return nil, err
	}

	c.setupLogging(cfg, cmd.ErrOrStderr())
	c.initializeTracking(cfg)
	return cfg, nil
}

// registry returns a decoder registry reading from the CLI filesystem
func (c *CLI) registry() *audio.DecoderRegistry {
	return audio.NewDefaultRegistryWithFilesystem(c.fs)
}

// eventHook records engine events when tracking is available
func (c *CLI) eventHook() engine.EventHook {
	if c.trackingDB != nil {
		return tracking.NewDBHook(c.trackingDB, c.sessionID)
	}
	return tracking.NewNopHook()
}

// newEngine builds an engine on sink and initializes its device
func (c *CLI) newEngine(cfg *config.Config, sink device.Sink) (*engine.Engine, error) {
	dev := device.New(sink, device.Config{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		BufferFrames: cfg.BufferFrames,
	})

	e := engine.New(dev,
		engine.WithRegistry(c.registry()),
		engine.WithResampleQuality(cfg.ResampleQuality),
		engine.WithHook(c.eventHook()),
		engine.WithHook(tracking.NewSlogHook(nil)))

	if err := e.InitAudioDevice(); err != nil {
		slog.Error("audio device initialization failed", "sink", sink.Name(), "error", err)
		return nil, fmt.Errorf("error initializing audio device: %w", err)
	}

	if err := e.SetMasterVolume(float32(cfg.Volume)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to set master volume: %w", err)
	}

	slog.Debug("engine ready",
		"sink", sink.Name(),
		"sample_rate", dev.SampleRate(),
		"channels", dev.Channels(),
		"volume", cfg.Volume)

	return e, nil
}

// newPlaybackEngine creates the configured sink and an engine on top of it
func (c *CLI) newPlaybackEngine(cfg *config.Config) (*engine.Engine, device.Sink, error) {
	sink, err := c.sinkFactory.CreateSink(cfg.AudioBackend)
	if err != nil {
		slog.Error("failed to create audio sink", "backend", cfg.AudioBackend, "error", err)
		return nil, nil, fmt.Errorf("failed to create audio backend '%s': %w", cfg.AudioBackend, err)
	}

	e, err := c.newEngine(cfg, sink)
	if err != nil {
		return nil, nil, err
	}
	return e, sink, nil
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	// Check for version flag before any system initialization
	if len(args) > 1 && (args[1] == "--version" || args[1] == "-v") {
		printVersion(stdout)
		return 0
	}

	c.initializeSystems()

	defer func() {
		if c.trackingDB != nil {
			if err := c.trackingDB.Close(); err != nil {
				slog.Error("error closing tracking database", "error", err)
			}
			c.trackingDB = nil
		}
	}()

	if len(args) > 0 {
		c.rootCmd.SetArgs(args[1:]) // Skip program name
	} else {
		c.rootCmd.SetArgs(nil)
	}
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	c.rootCmd.SetContext(contextWithCLI(c))

	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		slog.Debug("command execution failed", "error", err)
		return 1
	}

	return 0
}

// initializeSystems lazily initializes CLI components
func (c *CLI) initializeSystems() {
	if c.configManager == nil {
		c.configManager = config.NewConfigManagerWithFilesystem(c.fs)
	}
	if c.sinkFactory == nil {
		c.sinkFactory = device.NewSinkFactory()
	}
	if c.terminalDetector == nil {
		c.terminalDetector = &DefaultTerminalDetector{}
	}
}

// setupLogging configures slog for the command: stderr at the configured
// level, plus a rotating debug log file when file logging is enabled
func (c *CLI) setupLogging(cfg *config.Config, stderrWriter io.Writer) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}

	// Keep a more verbose logger installed by tests
	currentHandler := slog.Default().Handler()
	if textHandler, ok := currentHandler.(*slog.TextHandler); ok {
		if textHandler.Enabled(context.Background(), slog.LevelDebug) && level > slog.LevelDebug {
			slog.Debug("preserving existing verbose logger setup", "config_level", level.String())
			return
		}
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderrWriter, &slog.HandlerOptions{Level: level}),
	}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := c.configManager.ResolveLogFilePath(cfg.FileLogging.Filename)

		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))

	slog.Debug("logging setup completed",
		"level", level.String(),
		"handlers", len(handlers),
		"file_enabled", cfg.FileLogging != nil && cfg.FileLogging.Enabled)
}

// initializeTracking opens the tracking database if enabled in configuration.
// Failures leave tracking off; they never stop a command.
func (c *CLI) initializeTracking(cfg *config.Config) {
	if c.trackingDB != nil {
		return
	}

	if cfg.Tracking == nil || !cfg.Tracking.Enabled {
		slog.Debug("usage tracking disabled, skipping database initialization")
		return
	}

	dbPath := cfg.Tracking.DatabasePath
	if dbPath == "" {
		var err error
		dbPath, err = tracking.GetDatabasePath()
		if err != nil {
			slog.Error("failed to get database path, continuing without tracking", "error", err)
			return
		}
	}

	db, err := tracking.NewDatabase(dbPath)
	if err != nil {
		slog.Error("failed to initialize tracking database, continuing without tracking",
			"path", dbPath, "error", err)
		return
	}

	c.trackingDB = db
	slog.Debug("tracking database initialized", "path", dbPath, "session_id", c.sessionID)
}
