// Package config handles configuration loading, validation, and hot reload
// for snipd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snipd/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Snippets locates the snippet definitions.
	Snippets SnippetsConfig `toml:"snippets" json:"snippets" yaml:"snippets"`

	// Engine tunes matching and replacement.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Journal configures the expansion history database.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Status configures the optional metrics and health endpoint.
	Status StatusConfig `toml:"status" json:"status" yaml:"status"`
}

// SnippetsConfig locates the snippet file.
type SnippetsConfig struct {
	// Path is a JSON or YAML snippet file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Watch reloads the snippets when the file changes.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// ValidateSchema checks the file against the embedded JSON Schema on
	// every load and logs violations.
	ValidateSchema bool `toml:"validate_schema" json:"validate_schema" yaml:"validate_schema"`
}

// EngineConfig tunes the expansion engine.
type EngineConfig struct {
	// ReplaceDelayMs is the delay between the terminator and the replacement.
	ReplaceDelayMs int `toml:"replace_delay_ms" json:"replace_delay_ms" yaml:"replace_delay_ms"`

	// PollIntervalMs is the hook health check interval.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// RichTextHosts are executables that get backspace and Ctrl+V.
	RichTextHosts []string `toml:"rich_text_hosts" json:"rich_text_hosts" yaml:"rich_text_hosts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the log file size that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// JournalConfig configures the expansion journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// StatusConfig configures the HTTP status endpoint.
type StatusConfig struct {
	// Listen is a host:port. Empty disables the endpoint.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Version: Version,
		Snippets: SnippetsConfig{
			Path:  filepath.Join(dataDir, "snippets.json"),
			Watch: true,
		},
		Engine: EngineConfig{
			ReplaceDelayMs: 50,
			PollIntervalMs: 250,
			RichTextHosts:  []string{"winword.exe"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "journal.db"),
		},
	}
}

// DataDir returns the snipd data directory. SNIPD_DATA_DIR overrides the
// platform default.
func DataDir() string {
	if envDir := os.Getenv("SNIPD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from path. A missing file yields the defaults.
// The format follows the file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies SNIPD_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SNIPD_SNIPPETS"); v != "" {
		c.Snippets.Path = v
	}
	if v := os.Getenv("SNIPD_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SNIPD_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("SNIPD_STATUS_LISTEN"); v != "" {
		c.Status.Listen = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Engine.RichTextHosts != nil {
		clone.Engine.RichTextHosts = append([]string(nil), c.Engine.RichTextHosts...)
	}
	return &clone
}

// ReplaceDelay returns the replacement delay.
func (c *Config) ReplaceDelay() time.Duration {
	return time.Duration(c.Engine.ReplaceDelayMs) * time.Millisecond
}

// PollInterval returns the hook health poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMs) * time.Millisecond
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc, nil
}

// EnsureDirectories creates the directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Snippets.Path)}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
