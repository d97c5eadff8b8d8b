package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return windowsDataDir()
	case "darwin":
		return macOSDataDir()
	default:
		return linuxDataDir()
	}
}

// PlatformConfigDir returns the platform-specific configuration directory.
// On Windows and macOS configuration lives next to the data.
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" {
		return linuxConfigDir()
	}
	return PlatformDataDir()
}

func macOSDataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", "snipd")
}

// Linux paths follow the XDG Base Directory Specification.

func linuxDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "snipd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "snipd")
}

func linuxConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "snipd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "snipd")
}

func windowsDataDir() string {
	// %APPDATA% (roaming)
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "snipd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", "snipd")
}

// SupportedConfigFormats returns the config file extensions Load accepts.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the current directory, the config directory and
// the data directory for config.<ext>. Returns "" when none exists.
func FindConfigFile() string {
	searchDirs := []string{".", PlatformConfigDir(), DataDir()}
	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
