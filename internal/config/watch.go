package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes one project config file and reports edits. Editors
// typically replace the file on save, so the watch sits on the parent
// directory and filters by name.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchProjectFile invokes onChange after the file at path is written,
// created, renamed or removed. Events are debounced because a single save can
// produce several of them back to back.
func WatchProjectFile(path string, onChange func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	w := &Watcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go w.loop(filepath.Clean(path), onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func()) {
	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
