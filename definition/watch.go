package definition

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path of the definition file to watch (required)
	Path string

	// Vault receives the process rules of every valid version of the file
	// (required)
	Vault *formrules.RuleVault

	// OnReload is called after every reload attempt with the loaded bundle,
	// or the error that kept the vault unchanged. (optional)
	OnReload func(*Bundle, error)

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay is how long the file must be quiet before it is
	// reloaded. Default: 200ms
	DebounceDelay time.Duration
}

// A Watcher reloads the rules of a definition file into a RuleVault when
// the file changes. Forms computed from the vault pick up the new rules on
// their next pass. Only the process rules are reloaded; the form layout of
// running controllers does not change.
type Watcher struct {
	path     string
	vault    *formrules.RuleVault
	onReload func(*Bundle, error)
	log      *slog.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher

	// mu protects timer
	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher starts watching cfg.Path. The file's directory is watched
// rather than the file, so editors that save by renaming are handled.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Vault == nil {
		return nil, fmt.Errorf("vault is required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.Path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     abs,
		vault:    cfg.Vault,
		onReload: cfg.OnReload,
		log:      log.WithComponent(cfg.Logger, "watcher"),
		debounce: debounce,
		fs:       fsw,
		ctx:      ctx,
		cancel:   cancel,
	}
	w.log.Debug("watching definition", "path", abs)

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", log.ErrorKey, err.Error())
		case <-w.ctx.Done():
			return
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		b, err := w.Reload()
		if w.onReload != nil {
			w.onReload(b, err)
		}
	})
}

// Reload loads and validates the file and, when it is valid, replaces
// the rules in the vault. On error the vault is left unchanged.
func (w *Watcher) Reload() (*Bundle, error) {
	b, err := Load(w.path)
	if err == nil {
		err = b.Validate()
	}
	if err == nil {
		err = w.vault.Mutate(formrules.SetRules(b.Process.GlobalConditions, b.Process.TaskConditions))
	}
	if err != nil {
		metrics.RecordReload(false)
		w.log.Warn("keeping previous rules", "path", w.path, log.ErrorKey, err.Error())
		return nil, err
	}
	metrics.RecordReload(true)
	w.log.Info("rules reloaded", "path", w.path,
		"global", len(b.Process.GlobalConditions), "tasks", len(b.Process.TaskConditions))
	return b, nil
}

// Close stops the watcher and waits for its event loop to exit. A reload
// that is already running may still complete.
func (w *Watcher) Close() error {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.fs.Close()
}
