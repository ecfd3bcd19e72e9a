// Package poolconfig loads and hot-reloads the small slice of a writer
// pool's behavior spec.md §6.4 calls out as configurable: the inactive
// writer TTL, plus an eviction interval and a log level.
// The load/watch/debounce shape is grounded on the retrieval pack's
// fsnotify-driven YAML config loader.
package poolconfig

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the subset of pool behavior that can change without a process
// restart.
type Config struct {
	InactiveWriterTTL time.Duration `yaml:"inactive_writer_ttl"`
	EvictionInterval  time.Duration `yaml:"eviction_interval"`
	LogLevel          string        `yaml:"log_level"`
}

// DefaultConfig matches the Pool defaults in pkg/writerpool.Open.
func DefaultConfig() Config {
	return Config{
		InactiveWriterTTL: 30 * time.Minute,
		EvictionInterval:  time.Minute,
		LogLevel:          "info",
	}
}

// Loader reads Config from a YAML file and can watch it for changes,
// invoking an OnChange callback after each successful reload.
type Loader struct {
	path string

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)

	watcher *fsnotify.Watcher
	stop    chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// NewLoader loads path once and returns a ready Loader. The file must
// already exist; use DefaultConfig directly when running without one.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path, stop: make(chan struct{})}
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return nil
}

func (l *Loader) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// OnChange registers a callback invoked with the freshly reloaded Config
// after each debounced file-change event. Only one callback is kept.
func (l *Loader) OnChange(fn func(Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Watch starts watching the config file for writes, debouncing reloads by
// 100ms the way the pack's spider-config loader does, so a text editor's
// multi-write save doesn't trigger a reload storm.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher

	go l.watchLoop()

	return watcher.Add(l.path)
}

func (l *Loader) watchLoop() {
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				l.debounceReload()
			}
		case _, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Loader) debounceReload() {
	l.debounceMu.Lock()
	defer l.debounceMu.Unlock()

	if l.debounce != nil {
		l.debounce.Stop()
	}
	l.debounce = time.AfterFunc(100*time.Millisecond, func() {
		if err := l.Load(); err != nil {
			return
		}
		l.mu.RLock()
		cb := l.onChange
		cfg := l.cfg
		l.mu.RUnlock()
		if cb != nil {
			cb(cfg)
		}
	})
}

// Stop ends the file watch, if one was started.
func (l *Loader) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	if l.watcher != nil {
		l.watcher.Close()
	}
}
