package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches paths and calls a handler on changes, debounced so
// editors writing in multiple syscalls fire the handler once.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	handler       func()
	filter        func(name string) bool
	debounceDelay time.Duration
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	stopChan      chan struct{}
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	Handler       func()
	Filter        func(name string) bool
	DebounceDelay time.Duration
}

// NewFileWatcher creates a watcher and starts its loop.
func NewFileWatcher(cfg WatcherConfig) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	fw := &FileWatcher{
		watcher:       watcher,
		handler:       cfg.Handler,
		filter:        cfg.Filter,
		debounceDelay: cfg.DebounceDelay,
		stopChan:      make(chan struct{}),
	}
	go fw.watchLoop()
	return fw, nil
}

// Add adds a path to watch.
func (fw *FileWatcher) Add(path string) error {
	return fw.watcher.Add(path)
}

// Stop stops the watcher.
func (fw *FileWatcher) Stop() {
	close(fw.stopChan)
	fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.filter != nil && !fw.filter(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.debounceMu.Lock()
				if fw.debounceTimer != nil {
					fw.debounceTimer.Stop()
				}
				fw.debounceTimer = time.AfterFunc(fw.debounceDelay, func() {
					if fw.handler != nil {
						fw.handler()
					}
				})
				fw.debounceMu.Unlock()
			}
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
