// Package appshell launches and supervises the bundled backend server on
// behalf of a desktop shell and runs a one-shot update-notification pass
// backed by persisted key-value state.
package appshell

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/appshell/internal/browser"
	"github.com/loykin/appshell/internal/config"
	"github.com/loykin/appshell/internal/emitter"
	"github.com/loykin/appshell/internal/history"
	"github.com/loykin/appshell/internal/metrics"
	"github.com/loykin/appshell/internal/release"
	"github.com/loykin/appshell/internal/store"
	"github.com/loykin/appshell/internal/store/factory"
	"github.com/loykin/appshell/internal/supervisor"
	"github.com/loykin/appshell/internal/updater"
)

// Config re-exports the application configuration.
type Config = config.Config

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a TOML config file over the defaults.
func LoadConfig(path string) (Config, error) { return config.LoadFromTOML(path) }

// Shell owns the supervisor, the update notifier and their collaborators.
// It is constructed once at application start; Shutdown stops the supervised
// server exactly once regardless of how many times it is invoked.
type Shell struct {
	cfg      Config
	version  string
	kv       store.KV
	sink     history.Sink
	sup      *supervisor.Supervisor
	emit     emitter.Emitter
	notifier *updater.Notifier
	httpSrv  *http.Server

	stopOnce sync.Once

	mu       sync.Mutex
	locale   string
	localeFn func(string)
}

// New wires the shell from configuration. version is the running application
// version string, the ground truth for the update pass.
func New(cfg Config, version string) (*Shell, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	kv, err := factory.NewFromDSN(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := kv.EnsureSchema(context.Background()); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("ensure store schema: %w", err)
	}

	sink, err := history.NewSQLSinkFromDSN(cfg.StoreDSN)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("open history sink: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		ResourcesDir: cfg.ResourcesDir,
		StaticDir:    cfg.StaticDir,
		Log:          cfg.Log,
	})
	sup.SetHistorySink(sink)

	sh := &Shell{cfg: cfg, version: version, kv: kv, sink: sink, sup: sup}

	if cfg.Headless {
		sse := emitter.NewSSEEmitter()
		sh.emit = sse
		sh.httpSrv = emitter.NewServer(cfg.HTTPAddr, sse)
	} else {
		sh.emit = emitter.LogEmitter{}
	}

	src := release.NewGitHubClient(cfg.Update.Token)
	sh.notifier = updater.New(src, kv, sh.emit, cfg.Update.Owner, cfg.Update.Repo, version)
	return sh, nil
}

// Run starts the supervised server for the configured mode and, once the UI
// surface is up, kicks off the single update-notification pass. The pass is
// fire-and-forget relative to shutdown: a quit while a fetch is outstanding
// never blocks application exit.
func (sh *Shell) Run(ctx context.Context) (*supervisor.Session, error) {
	mode := supervisor.ModeWindowed
	if sh.cfg.Headless {
		mode = supervisor.ModeHeadless
	}
	// GPU toggling is resolved by the window layer, which is outside this
	// module; the flag only shows up in the startup log here.
	slog.Info("starting shell", "mode", mode, "disable_gpu", sh.cfg.DisableGPU, "version", sh.version)

	sess, err := sh.sup.Start(mode, nil)
	if err != nil {
		return nil, err
	}

	if sh.cfg.Headless {
		url := fmt.Sprintf("http://localhost:%d", sh.cfg.Port)
		if err := browser.Open(url); err != nil {
			slog.Warn("could not open browser", "url", url, "error", err)
		}
	}

	if sh.cfg.Update.Enabled {
		go func() {
			if err := sh.notifier.Run(ctx); err != nil {
				slog.Error("update check failed", "error", err)
			}
		}()
	}
	return sess, nil
}

// Shutdown stops the supervised server and releases resources. Safe to call
// more than once; the stop operation runs exactly once.
func (sh *Shell) Shutdown() {
	sh.stopOnce.Do(func() {
		sh.sup.Stop()
		if sh.httpSrv != nil {
			_ = sh.httpSrv.Close()
		}
		_ = sh.sink.Close()
		_ = sh.kv.Close()
	})
}

// SetLocaleHandler registers the collaborator that applies a language change
// (menu/i18n layer). Optional.
func (sh *Shell) SetLocaleHandler(f func(locale string)) {
	sh.mu.Lock()
	sh.localeFn = f
	sh.mu.Unlock()
}

// HandleLocaleChange consumes the inbound locale event from the UI layer.
// It acts only when newLocale is non-empty and differs from the current
// language; it reports whether the change was propagated.
func (sh *Shell) HandleLocaleChange(newLocale string) bool {
	sh.mu.Lock()
	if newLocale == "" || newLocale == sh.locale {
		sh.mu.Unlock()
		return false
	}
	sh.locale = newLocale
	f := sh.localeFn
	sh.mu.Unlock()

	slog.Info("locale changed", "locale", newLocale)
	if f != nil {
		f(newLocale)
	}
	return true
}
