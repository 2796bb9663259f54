package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// Config represents RIQAudio configuration
type Config struct {
	AudioBackend    string             `json:"audio_backend"`          // Output sink (auto, malgo, oto, null, manual)
	SampleRate      uint32             `json:"sample_rate"`            // Device sample rate, 0 = 44100
	Channels        uint32             `json:"channels"`               // Device channels (1 or 2), 0 = 2
	BufferFrames    uint32             `json:"buffer_frames"`          // Frames per mix tick, 0 = backend default
	Volume          float64            `json:"volume"`                 // Master volume (0.0 to 1.0)
	ResampleQuality int                `json:"resample_quality"`       // Resampler quality (1 to 64), 0 = default
	LogLevel        string             `json:"log_level"`              // Log level (debug, info, warn, error)
	FileLogging     *FileLoggingConfig `json:"file_logging,omitempty"` // File logging configuration
	Tracking        *TrackingConfig    `json:"tracking,omitempty"`     // Usage tracking configuration
}

// XDGInterface defines the interface for XDG directory operations
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetCachePath(purpose string) string
	CreateCacheDir(purpose string) error
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg XDGInterface
	fs  afero.Fs
}

// NewConfigManager creates a new configuration manager on the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager reading and
// writing through fs
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirsWithFilesystem(fs),
		fs:  fs,
	}
}

// NewConfigManagerWithXDG creates a configuration manager with injected path
// discovery
func NewConfigManagerWithXDG(fs afero.Fs, xdg XDGInterface) *ConfigManager {
	return &ConfigManager{xdg: xdg, fs: fs}
}

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	defaultConfig := &Config{
		AudioBackend:    "auto",
		SampleRate:      44100,
		Channels:        2,
		BufferFrames:    0,
		Volume:          1.0,
		ResampleQuality: 4,
		LogLevel:        "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "", // Empty = XDG cache path
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracking: GetDefaultTrackingConfig(),
	}

	slog.Debug("generated default config",
		"audio_backend", defaultConfig.AudioBackend,
		"sample_rate", defaultConfig.SampleRate,
		"channels", defaultConfig.Channels,
		"volume", defaultConfig.Volume,
		"log_level", defaultConfig.LogLevel)

	return defaultConfig
}

// LoadFromFile loads configuration from a specific file. Fields missing from
// the file keep their default values.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	err = json.Unmarshal(data, config)
	if err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	err = cm.ValidateConfig(config)
	if err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"audio_backend", config.AudioBackend,
		"sample_rate", config.SampleRate,
		"volume", config.Volume)

	return config, nil
}

// SaveToFile saves configuration to a specific file
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	err := cm.ValidateConfig(config)
	if err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	err = cm.fs.MkdirAll(dir, 0755)
	if err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = afero.WriteFile(cm.fs, filePath, data, 0644)
	if err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	configPaths := cm.xdg.GetConfigPaths("config.json")

	for i, configPath := range configPaths {
		slog.Debug("checking config path", "path_index", i, "path", configPath)

		if _, err := cm.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path", configPath)
			return cm.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults", "searched", len(configPaths))
	return cm.GetDefaultConfig(), nil
}

// ValidateConfig validates configuration values
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var errors []string

	if config.Volume < 0.0 || config.Volume > 1.0 {
		errors = append(errors, fmt.Sprintf("volume must be between 0.0 and 1.0, got %f", config.Volume))
	}

	if config.SampleRate != 0 && (config.SampleRate < 8000 || config.SampleRate > 192000) {
		errors = append(errors, fmt.Sprintf("sample_rate must be between 8000 and 192000, got %d", config.SampleRate))
	}

	if config.Channels > 2 {
		errors = append(errors, fmt.Sprintf("channels must be 1 or 2, got %d", config.Channels))
	}

	if config.ResampleQuality < 0 || config.ResampleQuality > 64 {
		errors = append(errors, fmt.Sprintf("resample_quality must be between 1 and 64, got %d", config.ResampleQuality))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if config.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
				config.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if !cm.IsValidAudioBackend(config.AudioBackend) {
		errors = append(errors, fmt.Sprintf("invalid audio backend '%s', must be one of: %s",
			config.AudioBackend, strings.Join(cm.GetSupportedAudioBackends(), ", ")))
	}

	if config.FileLogging != nil {
		fileLogging := config.FileLogging

		if fileLogging.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}
		if fileLogging.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}
		if fileLogging.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	slog.Debug("config validation passed")
	return nil
}

// MergeConfigs merges two configurations, with override taking precedence
// for every non-zero field
func (cm *ConfigManager) MergeConfigs(base, override *Config) *Config {
	slog.Debug("merging configurations")

	merged := *base

	if override.AudioBackend != "" {
		merged.AudioBackend = override.AudioBackend
	}
	if override.SampleRate != 0 {
		merged.SampleRate = override.SampleRate
	}
	if override.Channels != 0 {
		merged.Channels = override.Channels
	}
	if override.BufferFrames != 0 {
		merged.BufferFrames = override.BufferFrames
	}
	if override.Volume != 0.0 {
		merged.Volume = override.Volume
	}
	if override.ResampleQuality != 0 {
		merged.ResampleQuality = override.ResampleQuality
	}
	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.FileLogging != nil {
		merged.FileLogging = override.FileLogging
	}
	if override.Tracking != nil {
		merged.Tracking = override.Tracking
	}

	return &merged
}

// ApplyEnvironmentOverrides applies RIQAUDIO_* environment variables to a
// copy of config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	if backend := os.Getenv("RIQAUDIO_BACKEND"); backend != "" {
		if cm.IsValidAudioBackend(backend) {
			result.AudioBackend = backend
			slog.Debug("applied audio backend override from environment", "value", backend)
		} else {
			slog.Warn("invalid RIQAUDIO_BACKEND environment variable", "value", backend)
		}
	}

	if rateStr := os.Getenv("RIQAUDIO_SAMPLE_RATE"); rateStr != "" {
		if rate, err := strconv.ParseUint(rateStr, 10, 32); err == nil {
			result.SampleRate = uint32(rate)
			slog.Debug("applied sample rate override from environment", "value", rate)
		} else {
			slog.Warn("invalid RIQAUDIO_SAMPLE_RATE environment variable", "value", rateStr, "error", err)
		}
	}

	if chStr := os.Getenv("RIQAUDIO_CHANNELS"); chStr != "" {
		if ch, err := strconv.ParseUint(chStr, 10, 32); err == nil {
			result.Channels = uint32(ch)
			slog.Debug("applied channels override from environment", "value", ch)
		} else {
			slog.Warn("invalid RIQAUDIO_CHANNELS environment variable", "value", chStr, "error", err)
		}
	}

	if volStr := os.Getenv("RIQAUDIO_VOLUME"); volStr != "" {
		if vol, err := strconv.ParseFloat(volStr, 64); err == nil {
			result.Volume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid RIQAUDIO_VOLUME environment variable", "value", volStr, "error", err)
		}
	}

	if logLevel := os.Getenv("RIQAUDIO_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	if result.Tracking != nil {
		result.Tracking = ApplyTrackingEnvironmentOverrides(result.Tracking)
	}

	return &result
}

// ApplyLogLevel configures slog with the specified log level on stderr
func (cm *ConfigManager) ApplyLogLevel(logLevel string) error {
	return cm.ApplyLogLevelWithWriter(logLevel, os.Stderr)
}

// ApplyLogLevelWithWriter configures slog with the specified log level and
// custom writer
func (cm *ConfigManager) ApplyLogLevelWithWriter(logLevel string, writer io.Writer) error {
	if logLevel == "" {
		slog.Debug("no log level specified, keeping current slog configuration")
		return nil
	}

	level, err := ParseLogLevel(logLevel)
	if err != nil {
		slog.Error("invalid log level for slog configuration", "log_level", logLevel, "error", err)
		return err
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	slog.Debug("slog configured successfully", "log_level", logLevel, "slog_level", level)
	return nil
}

// ParseLogLevel maps a configuration log level to its slog.Level
func ParseLogLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", logLevel)
	}
}

// ResolveLogFilePath resolves the log file path using the XDG cache
// directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "riqaudio.log")
}

// GetSupportedAudioBackends returns a list of all supported audio backend types
func (cm *ConfigManager) GetSupportedAudioBackends() []string {
	return []string{"auto", "malgo", "oto", "null", "manual"}
}

// IsValidAudioBackend checks if an audio backend type is supported
func (cm *ConfigManager) IsValidAudioBackend(backend string) bool {
	// Empty string is valid (defaults to auto)
	if backend == "" {
		return true
	}

	for _, supported := range cm.GetSupportedAudioBackends() {
		if backend == supported {
			return true
		}
	}
	return false
}
