package render

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"skillwizard/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// TemplateWatcher reloads templates when files in the override directory change
type TemplateWatcher struct {
	mu sync.Mutex

	dir           string
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	reloadCallback func() error
	logger         *errors.Logger

	running bool
}

// NewTemplateWatcher creates a watcher for dir. Editors write files in
// bursts, so changes are debounced before reloadCallback runs.
func NewTemplateWatcher(dir string, debounceDelay time.Duration, reloadCallback func() error, logger *errors.Logger) *TemplateWatcher {
	if debounceDelay == 0 {
		debounceDelay = 500 * time.Millisecond
	}

	return &TemplateWatcher{
		dir:            dir,
		debounceDelay:  debounceDelay,
		stopChan:       make(chan struct{}),
		reloadChan:     make(chan struct{}, 1),
		reloadCallback: reloadCallback,
		logger:         logger,
	}
}

// Start begins watching the template directory
func (tw *TemplateWatcher) Start() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.running {
		return fmt.Errorf("template watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(tw.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && tw.logger != nil {
			tw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", tw.dir, err)
	}
	tw.fsWatcher = watcher

	tw.running = true
	go tw.watchLoop()

	if tw.logger != nil {
		tw.logger.Info("Template watcher started",
			"directory", tw.dir,
			"debounce_delay", tw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher
func (tw *TemplateWatcher) Stop() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.running {
		return nil
	}

	close(tw.stopChan)

	if tw.debounceTimer != nil {
		tw.debounceTimer.Stop()
	}

	tw.running = false

	if err := tw.fsWatcher.Close(); err != nil {
		if tw.logger != nil {
			tw.logger.LogError(err, "Failed to close file system watcher")
		}
		return err
	}

	if tw.logger != nil {
		tw.logger.Info("Template watcher stopped")
	}
	return nil
}

// IsRunning returns whether the watcher is currently running
func (tw *TemplateWatcher) IsRunning() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.running
}

func (tw *TemplateWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-tw.fsWatcher.Events:
			if !ok {
				return
			}
			if shouldReload(event) {
				tw.scheduleReload()
			}

		case err, ok := <-tw.fsWatcher.Errors:
			if !ok {
				return
			}
			if tw.logger != nil {
				tw.logger.LogError(err, "File watcher error")
			}

		case <-tw.reloadChan:
			if err := tw.reloadCallback(); err != nil {
				if tw.logger != nil {
					tw.logger.LogError(err, "Template reload failed, keeping previous templates")
				}
				continue
			}
			if tw.logger != nil {
				tw.logger.Info("Templates reloaded", "directory", tw.dir)
			}

		case <-tw.stopChan:
			return
		}
	}
}

// shouldReload reports whether event touches a template or the stylesheet
func shouldReload(event fsnotify.Event) bool {
	switch filepath.Ext(event.Name) {
	case ".html", ".css":
	default:
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

func (tw *TemplateWatcher) scheduleReload() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.debounceTimer != nil {
		tw.debounceTimer.Stop()
	}

	tw.debounceTimer = time.AfterFunc(tw.debounceDelay, func() {
		select {
		case tw.reloadChan <- struct{}{}:
		default:
		}
	})
}
