package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SNIPD_DATA_DIR", "/data/snipd")
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.ReplaceDelay() != 50*time.Millisecond {
		t.Errorf("expected replace delay 50ms, got %v", cfg.ReplaceDelay())
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %v", cfg.PollInterval())
	}
	if len(cfg.Engine.RichTextHosts) != 1 || cfg.Engine.RichTextHosts[0] != "winword.exe" {
		t.Errorf("unexpected rich text hosts: %v", cfg.Engine.RichTextHosts)
	}
	if cfg.Snippets.Path != filepath.Join("/data/snipd", "snippets.json") {
		t.Errorf("unexpected snippets path: %s", cfg.Snippets.Path)
	}
	if !cfg.Snippets.Watch {
		t.Error("snippet watching should be on by default")
	}
	if cfg.Status.Listen != "" {
		t.Errorf("status endpoint should be off by default, got %q", cfg.Status.Listen)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("SNIPD_DATA_DIR", "/data/snipd")
	path := ConfigPath()
	if path != filepath.Join("/data/snipd", "config.toml") {
		t.Errorf("unexpected config path %s", path)
	}
}

func TestPlatformDataDir(t *testing.T) {
	dir := PlatformDataDir()
	if dir == "" {
		t.Fatal("PlatformDataDir returned empty string")
	}
	if !strings.HasSuffix(dir, "snipd") {
		t.Errorf("expected dir ending with snipd, got %s", dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.PollIntervalMs != 250 {
		t.Errorf("expected default poll interval, got %d", cfg.Engine.PollIntervalMs)
	}
}

func TestLoadValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = 1

[snippets]
path = "/custom/snippets.yaml"
watch = false
validate_schema = true

[engine]
replace_delay_ms = 80
poll_interval_ms = 500
rich_text_hosts = ["winword.exe", "outlook.exe"]

[logging]
level = "debug"
format = "json"
output = "stderr"

[status]
listen = "127.0.0.1:9477"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Snippets.Path != "/custom/snippets.yaml" || cfg.Snippets.Watch || !cfg.Snippets.ValidateSchema {
		t.Errorf("unexpected snippets section: %+v", cfg.Snippets)
	}
	if cfg.ReplaceDelay() != 80*time.Millisecond || cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("unexpected engine timings: %+v", cfg.Engine)
	}
	if len(cfg.Engine.RichTextHosts) != 2 {
		t.Errorf("expected 2 rich text hosts, got %v", cfg.Engine.RichTextHosts)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging section: %+v", cfg.Logging)
	}
	if cfg.Status.Listen != "127.0.0.1:9477" {
		t.Errorf("unexpected status listen %q", cfg.Status.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[engine]
replace_delay_ms = 120
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.ReplaceDelayMs != 120 {
		t.Errorf("expected replace delay 120, got %d", cfg.Engine.ReplaceDelayMs)
	}
	if cfg.Engine.PollIntervalMs != 250 {
		t.Errorf("poll interval should keep its default, got %d", cfg.Engine.PollIntervalMs)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level should keep its default, got %s", cfg.Logging.Level)
	}
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(yamlPath, []byte("engine:\n  poll_interval_ms: 100\n"), 0600)
	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load YAML failed: %v", err)
	}
	if cfg.Engine.PollIntervalMs != 100 {
		t.Errorf("expected poll interval 100, got %d", cfg.Engine.PollIntervalMs)
	}

	jsonPath := filepath.Join(dir, "config.json")
	os.WriteFile(jsonPath, []byte(`{"logging": {"level": "warn"}}`), 0600)
	cfg, err = Load(jsonPath)
	if err != nil {
		t.Fatalf("Load JSON failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("this is not valid toml {{{\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SNIPD_SNIPPETS", "/env/snippets.json")
	t.Setenv("SNIPD_LOG_LEVEL", "DEBUG")
	t.Setenv("SNIPD_STATUS_LISTEN", "localhost:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Snippets.Path != "/env/snippets.json" {
		t.Errorf("SNIPD_SNIPPETS not applied: %s", cfg.Snippets.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("SNIPD_LOG_LEVEL not applied: %s", cfg.Logging.Level)
	}
	if cfg.Status.Listen != "localhost:9000" {
		t.Errorf("SNIPD_STATUS_LISTEN not applied: %s", cfg.Status.Listen)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 7 }, "version"},
		{"snippets path", func(c *Config) { c.Snippets.Path = "" }, "snippets.path"},
		{"snippets type", func(c *Config) { c.Snippets.Path = "/x/snippets.txt" }, "snippets.path"},
		{"replace delay", func(c *Config) { c.Engine.ReplaceDelayMs = -1 }, "engine.replace_delay_ms"},
		{"poll interval", func(c *Config) { c.Engine.PollIntervalMs = 0 }, "engine.poll_interval_ms"},
		{"rich host", func(c *Config) { c.Engine.RichTextHosts = []string{" "} }, "engine.rich_text_hosts[0]"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"log file", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
		{"journal path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"status listen", func(c *Config) { c.Status.Listen = "no-port" }, "status.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestJournalPathOnlyRequiredWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Enabled = false
	cfg.Journal.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled journal should not need a path: %v", err)
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	cfg.Logging.MaxSizeMB = 3

	lc, err := cfg.LoggingConfig()
	if err != nil {
		t.Fatalf("LoggingConfig failed: %v", err)
	}
	if lc.MaxSize != 3 || lc.Output != "both" {
		t.Errorf("unexpected logging config: %+v", lc)
	}

	cfg.Logging.Level = "loud"
	if _, err := cfg.LoggingConfig(); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Engine.RichTextHosts[0] = "outlook.exe"
	if cfg.Engine.RichTextHosts[0] != "winword.exe" {
		t.Error("clone shares rich text hosts with original")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Snippets.Path = filepath.Join(dir, "a", "snippets.json")
	cfg.Journal.Path = filepath.Join(dir, "b", "journal.db")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(dir, "c", "d", "snipd.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, sub := range []string{"a", "b", filepath.Join("c", "d")} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("directory %s was not created", sub)
		}
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, ext := range SupportedConfigFormats() {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config."+ext)
			cfg := DefaultConfig()
			cfg.Engine.ReplaceDelayMs = 75
			cfg.Status.Listen = "127.0.0.1:9477"

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Engine.ReplaceDelayMs != 75 || loaded.Status.Listen != "127.0.0.1:9477" {
				t.Errorf("values lost in %s round trip: %+v", ext, loaded)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created || cfg == nil {
		t.Fatalf("expected a new config, created=%v", created)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("existing config should not be recreated")
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SNIPD_DATA_DIR", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("APPDATA", filepath.Join(dir, "appdata"))
	t.Setenv("HOME", filepath.Join(dir, "home"))

	if got := FindConfigFile(); got != "" {
		t.Fatalf("expected no config file, got %s", got)
	}

	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("version: 1\n"), 0600)
	if got := FindConfigFile(); got != path {
		t.Errorf("expected %s, got %s", path, got)
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loader := NewLoader(path)
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(old, new *Config) {
		if old.Logging.Level == new.Logging.Level {
			return
		}
		select {
		case changed <- new:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer loader.Close()

	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	select {
	case got := <-changed:
		if got.Logging.Level != "debug" {
			t.Errorf("expected debug, got %s", got.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change not delivered")
	}
	if loader.Config().Logging.Level != "debug" {
		t.Error("loader did not keep the new config")
	}
}

func TestLoaderKeepsConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	SaveConfig(DefaultConfig(), path)

	loader := NewLoader(path)
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer loader.Close()

	os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0600)

	select {
	case err := <-loader.Errors():
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected validation error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload error")
	}
	if loader.Config().Logging.Level != "info" {
		t.Errorf("invalid reload replaced config: %s", loader.Config().Logging.Level)
	}
}

func TestFileWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snippets.json")
	os.WriteFile(path, []byte(`{}`), 0600)

	var calls atomic.Int32
	w := NewFileWatcher(path, 200*time.Millisecond, func() { calls.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		os.WriteFile(path, []byte(`{".brb": "be right back"}`), 0600)
	}
	os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0600)

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected one debounced callback, got %d", got)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
