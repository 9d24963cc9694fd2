// Package confwatcher contains a configuration file watcher.
package confwatcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	minInterval = 1 * time.Second
)

// ConfWatcher is a configuration file watcher.
type ConfWatcher struct {
	inner        *fsnotify.Watcher
	watchedPath  string
	lastReceived time.Time

	// out
	signal chan struct{}
	done   chan struct{}
}

// New allocates a ConfWatcher.
func New(confPath string) (*ConfWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// use absolute paths to support editors
	// that write to a temporary file and rename it
	absolutePath, err := filepath.Abs(confPath)
	if err != nil {
		inner.Close()
		return nil, err
	}

	if _, err := os.Stat(absolutePath); err == nil {
		err = inner.Add(filepath.Dir(absolutePath))
		if err != nil {
			inner.Close()
			return nil, err
		}
	}

	w := &ConfWatcher{
		inner:       inner,
		watchedPath: absolutePath,
		signal:      make(chan struct{}),
		done:        make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// Close closes a ConfWatcher.
func (w *ConfWatcher) Close() {
	go func() {
		for range w.signal {
		}
	}()
	w.inner.Close()
	<-w.done
}

func (w *ConfWatcher) run() {
	defer close(w.done)

outer:
	for {
		select {
		case event, ok := <-w.inner.Events:
			if !ok {
				break outer
			}

			if (event.Op&fsnotify.Write) != fsnotify.Write &&
				(event.Op&fsnotify.Create) != fsnotify.Create {
				continue
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != w.watchedPath {
				continue
			}

			// debounce chained events generated by some editors
			now := time.Now()
			if now.Sub(w.lastReceived) < minInterval {
				continue
			}
			w.lastReceived = now

			w.signal <- struct{}{}

		case _, ok := <-w.inner.Errors:
			if !ok {
				break outer
			}
		}
	}

	close(w.signal)
}

// Watch returns when the configuration file has changed.
func (w *ConfWatcher) Watch() chan struct{} {
	return w.signal
}
