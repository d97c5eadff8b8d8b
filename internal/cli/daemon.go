package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"snipd/internal/config"
	"snipd/internal/engine"
	"snipd/internal/focus"
	"snipd/internal/health"
	"snipd/internal/journal"
	"snipd/internal/keystroke"
	"snipd/internal/logging"
	"snipd/internal/metrics"
	"snipd/internal/status"
)

const (
	shutdownTimeout = 3 * time.Second
	crashReportAge  = 30 * 24 * time.Hour
)

// Platform is the set of OS integrations the daemon drives.
type Platform struct {
	Hook      keystroke.Hook
	Focus     engine.Foreground
	Clipboard keystroke.Clipboard
	Injector  keystroke.Injector
	Idle      keystroke.IdleTimer
}

// SystemPlatform returns the real keyboard, window and clipboard
// integrations for this OS.
func SystemPlatform() Platform {
	return Platform{
		Hook:      keystroke.NewSystemHook(),
		Focus:     focus.NewSystem(),
		Clipboard: keystroke.NewSystemClipboard(),
		Injector:  keystroke.NewSystemInjector(),
		Idle:      keystroke.NewSystemIdleTimer(),
	}
}

// Daemon owns every long-lived component of "snipd run".
type Daemon struct {
	loader  *config.Loader
	logger  *logging.Logger
	crash   *logging.CrashHandler
	metrics *metrics.Metrics
	journal *journal.Journal
	engine  *engine.Engine
	checker *health.Checker
	status  *status.Server

	mu        sync.Mutex
	cfg       *config.Config // effective config, overrides applied
	overrides func(*config.Config)
	watcher   *config.FileWatcher
	snippets  config.SnippetsConfig
}

// NewDaemon wires the components described by cfg. loader may be nil, in
// which case the config file is not watched.
func NewDaemon(cfg *config.Config, loader *config.Loader, logger *logging.Logger, platform Platform) (*Daemon, error) {
	d := &Daemon{
		cfg:      cfg,
		loader:   loader,
		logger:   logger,
		metrics:  metrics.New(),
		checker:  health.NewChecker(),
		snippets: cfg.Snippets,
	}
	d.crash = logging.NewCrashHandler(&logging.CrashHandlerConfig{
		CrashDir:  crashDir(cfg),
		Version:   Version,
		Component: "engine",
		Logger:    logger.Logger,
	})

	opts := engine.Options{
		Hook:           platform.Hook,
		Focus:          platform.Focus,
		Clipboard:      platform.Clipboard,
		Injector:       platform.Injector,
		Idle:           platform.Idle,
		Logger:         logger.Logger,
		Metrics:        d.metrics,
		Crash:          d.crash,
		ReplaceDelay:   cfg.ReplaceDelay(),
		PollInterval:   cfg.PollInterval(),
		RichTextHosts:  cfg.Engine.RichTextHosts,
		ValidateSchema: cfg.Snippets.ValidateSchema,
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path, logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = j
		opts.Journal = j
		d.checker.RegisterFunc("journal", false, health.DatabaseCheck(j.Ping))
	}

	eng, err := engine.New(opts)
	if err != nil {
		d.closeJournal()
		return nil, err
	}
	d.engine = eng
	d.checker.RegisterFunc("hook", true, health.HookCheck(eng))
	d.checker.RegisterFunc("index", false, health.IndexCheck(eng))

	if cfg.Status.Listen != "" {
		d.status = status.New(status.Options{
			Addr:       cfg.Status.Listen,
			Metrics:    d.metrics.Handler(),
			Health:     d.checker,
			Controller: eng,
			Logger:     logger.Logger,
		})
	}
	return d, nil
}

// crashDir keeps crash reports next to the log file.
func crashDir(cfg *config.Config) string {
	if cfg.Logging.FilePath == "" {
		return logging.DefaultCrashDir()
	}
	return filepath.Join(filepath.Dir(cfg.Logging.FilePath), "crashes")
}

// SetOverrides registers settings that take precedence over the config
// file, such as command-line flags. They are applied to every reloaded
// config before it is compared with the running one.
func (d *Daemon) SetOverrides(fn func(*config.Config)) {
	d.mu.Lock()
	d.overrides = fn
	d.mu.Unlock()
}

// Engine returns the expansion engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Health returns the health checker.
func (d *Daemon) Health() *health.Checker {
	return d.checker
}

// StatusAddr returns the bound status address, or "" when disabled.
func (d *Daemon) StatusAddr() string {
	if d.status == nil {
		return ""
	}
	return d.status.Addr()
}

// Run loads the snippets, starts every component and blocks until ctx is
// cancelled. Shutdown waits for a scheduled replacement to finish.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.crash.CleanupOldReports(crashReportAge); err != nil {
		d.logger.Debug("crash report cleanup", "error", err)
	}
	d.loadSnippets()
	if err := d.watchSnippets(d.snippets); err != nil {
		d.logger.Warn("snippet file not watched", "path", d.snippets.Path, "error", err)
	}

	if d.loader != nil {
		d.loader.OnChange(d.applyConfig)
		if err := d.loader.Watch(); err != nil {
			d.logger.Warn("config file not watched", "path", d.loader.Path(), "error", err)
		} else {
			go d.logConfigErrors(ctx)
		}
	}

	if d.status != nil {
		if err := d.status.Start(); err != nil {
			d.shutdown()
			return err
		}
	}

	if err := d.engine.Start(ctx); err != nil {
		d.shutdown()
		return err
	}
	d.checker.SetReady(true)
	d.logger.Info("snipd running",
		"version", Version,
		"snippets_file", d.snippets.Path,
		"status", d.StatusAddr(),
	)

	<-ctx.Done()
	d.logger.Info("shutting down")
	d.shutdown()
	return nil
}

func (d *Daemon) loadSnippets() {
	d.mu.Lock()
	path := d.snippets.Path
	d.mu.Unlock()
	if err := d.engine.ReloadFile(path); err != nil {
		d.logger.Error("snippets not loaded", "path", path, "error", err)
	}
}

// watchSnippets replaces the snippet file watcher to follow sc.
func (d *Daemon) watchSnippets(sc config.SnippetsConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		d.watcher.Close()
		d.watcher = nil
	}
	d.snippets = sc
	if !sc.Watch {
		return nil
	}

	w := config.NewFileWatcher(sc.Path, config.DefaultDebounce, func() {
		d.logger.Info("snippets file changed", "path", sc.Path)
		d.loadSnippets()
	})
	w.OnError(func(err error) {
		d.logger.Warn("snippet watcher error", "error", err)
	})
	if err := w.Start(); err != nil {
		return err
	}
	d.watcher = w
	return nil
}

// applyConfig applies what can change at runtime; everything else is
// logged as needing a restart.
func (d *Daemon) applyConfig(_, next *config.Config) {
	cfg := next.Clone()
	d.mu.Lock()
	if d.overrides != nil {
		d.overrides(cfg)
	}
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if old.Logging.Level != cfg.Logging.Level {
		if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			d.logger.SetLevel(level)
			d.logger.Info("log level changed", "level", cfg.Logging.Level)
		}
	}

	if old.Snippets != cfg.Snippets {
		if err := d.watchSnippets(cfg.Snippets); err != nil {
			d.logger.Warn("snippet file not watched", "path", cfg.Snippets.Path, "error", err)
		}
		d.loadSnippets()
	}

	if !reflect.DeepEqual(old.Engine, cfg.Engine) || old.Journal != cfg.Journal || old.Status != cfg.Status {
		d.logger.Warn("config change needs a restart to take effect")
	}
}

func (d *Daemon) logConfigErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-d.loader.Errors():
			d.logger.Error("config reload rejected", "error", err)
		}
	}
}

func (d *Daemon) shutdown() {
	d.checker.SetReady(false)

	if err := d.engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
		d.logger.Warn("stop engine", "error", err)
	}
	d.engine.Wait()

	d.mu.Lock()
	if d.watcher != nil {
		d.watcher.Close()
		d.watcher = nil
	}
	d.mu.Unlock()
	if d.loader != nil {
		d.loader.Close()
	}

	if d.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.status.Shutdown(ctx); err != nil {
			d.logger.Warn("stop status server", "error", err)
		}
		cancel()
	}
	d.closeJournal()
}

func (d *Daemon) closeJournal() {
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("close journal", "error", err)
		}
		d.journal = nil
	}
}
