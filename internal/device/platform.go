package device

import (
	"log/slog"
	"os"
	"strings"
)

// IsWSL checks if the current environment is Windows Subsystem for Linux
func IsWSL() bool {
	return detectWSLFromData(readProcVersion(), os.Getenv("WSL_DISTRO_NAME"))
}

// detectWSLFromData checks for WSL indicators in the provided data
func detectWSLFromData(procVersion, wslEnv string) bool {
	if wslEnv != "" {
		slog.Debug("WSL detected via environment variable", "distro", wslEnv)
		return true
	}

	procLower := strings.ToLower(procVersion)
	if strings.Contains(procLower, "microsoft") || strings.Contains(procLower, "wsl") {
		slog.Debug("WSL detected via /proc/version")
		return true
	}

	return false
}

func readProcVersion() string {
	content, err := os.ReadFile("/proc/version")
	if err != nil {
		slog.Debug("failed to read /proc/version", "error", err)
		return ""
	}
	return string(content)
}

// DetectOptimalSink picks the sink kind "auto" resolves to on this machine
func DetectOptimalSink() string {
	return detectOptimalSinkWith(IsWSL())
}

func detectOptimalSinkWith(isWSL bool) string {
	if isWSL {
		// miniaudio crackles through the WSLg PulseAudio bridge
		slog.Debug("WSL detected, preferring oto over malgo")
		return SinkOto
	}
	return SinkMalgo
}
