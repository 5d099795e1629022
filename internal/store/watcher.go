package store

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports which agent records change under a store root. It is
// used by callers that re-render agent listings live; a store works fine
// without one.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan string
	done    chan struct{}
}

// NewWatcher starts watching the store root for agent record changes.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		changes: make(chan string, 16),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes delivers the sanitized agent id of each record that changes.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// loop translates filesystem events into agent ids. Records land via
// rename, so Create and Write both count; temp files are ignored.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}
			agentID := strings.TrimSuffix(name, ".json")
			select {
			case w.changes <- agentID:
			default:
				// Drop rather than block the event loop.
			}
		case <-w.watcher.Errors:
			// Keep watching; listings fall back to manual refresh.
		}
	}
}
