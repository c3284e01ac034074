// Package watch triggers debounced callbacks when files on disk change.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"resumewizard/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no delay is configured
const DefaultDebounce = time.Second

// FileWatcher watches a fixed set of files and calls back after they settle
type FileWatcher struct {
	mu sync.RWMutex

	name  string
	files []string

	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	onChange func()
	logger   *errors.Logger

	running bool
}

// New creates a watcher. name only labels log lines.
func New(name string, files []string, debounceDelay time.Duration, onChange func(), logger *errors.Logger) *FileWatcher {
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounce
	}
	if logger == nil {
		logger = errors.Discard()
	}

	watched := make([]string, 0, len(files))
	for _, f := range files {
		if f != "" {
			watched = append(watched, filepath.Clean(f))
		}
	}

	return &FileWatcher{
		name:          name,
		files:         watched,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("%s watcher is already running", fw.name)
	}
	if len(fw.files) == 0 {
		return fmt.Errorf("%s watcher has no files to watch", fw.name)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.fsWatcher = watcher

	if err := fw.updateModTimes(); err != nil {
		_ = fw.fsWatcher.Close()
		return fmt.Errorf("failed to get initial file modification times: %w", err)
	}

	for _, file := range fw.files {
		if err := fw.addFile(file); err != nil {
			fw.logger.Warn("Failed to watch file", "watcher", fw.name, "file", file, "error", err)
		}
	}

	fw.running = true
	go fw.watchLoop()

	fw.logger.Info("File watcher started",
		"watcher", fw.name,
		"files", fw.files,
		"debounce_delay", fw.debounceDelay)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}

	close(fw.stopChan)
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.running = false

	if err := fw.fsWatcher.Close(); err != nil {
		fw.logger.LogError(err, "Failed to close file system watcher", "watcher", fw.name)
		return err
	}

	fw.logger.Info("File watcher stopped", "watcher", fw.name)
	return nil
}

// IsRunning returns whether the watcher is currently running
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

// Files returns the watched paths
func (fw *FileWatcher) Files() []string {
	return slices.Clone(fw.files)
}

// addFile watches the file and its directory. The directory catches atomic
// replace-by-rename writes and files that do not exist yet.
func (fw *FileWatcher) addFile(file string) error {
	if err := fw.fsWatcher.Add(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to watch file %s: %w", file, err)
	}

	dir := filepath.Dir(file)
	if err := fw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

func (fw *FileWatcher) updateModTimes() error {
	for _, file := range fw.files {
		if stat, err := os.Stat(file); err == nil {
			fw.lastModTime[file] = stat.ModTime()
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat file %s: %w", file, err)
		}
	}
	return nil
}

// hasFileChanged checks if a file has been modified since last check.
// Only the watch loop goroutine calls it.
func (fw *FileWatcher) hasFileChanged(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			if _, exists := fw.lastModTime[file]; exists {
				delete(fw.lastModTime, file)
				return true
			}
		}
		return false
	}

	lastMod, exists := fw.lastModTime[file]
	if !exists || !stat.ModTime().Equal(lastMod) {
		fw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-fw.fsWatcher.Events:
			if !ok {
				return
			}
			if fw.shouldProcessEvent(event) {
				fw.scheduleReload()
			}

		case err, ok := <-fw.fsWatcher.Errors:
			if !ok {
				return
			}
			fw.logger.LogError(err, "File watcher error", "watcher", fw.name)

		case <-fw.reloadChan:
			// Evaluate every file so each mod time is refreshed
			changed := false
			for _, file := range fw.files {
				if fw.hasFileChanged(file) {
					changed = true
				}
			}
			if changed {
				fw.logger.Info("Watched files changed, triggering reload", "watcher", fw.name)
				fw.onChange()
			}

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	watched := slices.ContainsFunc(fw.files, func(file string) bool {
		return name == file || filepath.Base(name) == filepath.Base(file)
	})
	if !watched {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, func() {
		select {
		case fw.reloadChan <- struct{}{}:
		default:
			// reload already pending
		}
	})
}
