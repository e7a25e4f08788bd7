// Package watch observes a repository's control files and reports
// state changes, so long-running tools can react to edits made by
// other processes without polling.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/gitmap-dev/gitmap/core"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})

// Event is one observed repository change.
type Event struct {
	Status *core.Status
}

// Watcher reports repository state changes on its Events channel.
type Watcher struct {
	repo     *core.Repository
	fs       *fsnotify.Watcher
	events   chan Event
	done     chan struct{}
	debounce time.Duration
}

// DefaultDebounce folds the burst of writes a single save produces
// into one event.
const DefaultDebounce = 250 * time.Millisecond

// New starts watching the repository's control directory. Close the
// watcher to release the underlying file watches.
func New(repo *core.Repository) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(repo.Root(), core.GitMapDir)
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	// Branch moves land under refs/heads, watch it when present.
	heads := filepath.Join(dir, "refs", "heads")
	if _, err := os.Stat(heads); err == nil {
		if err := fs.Add(heads); err != nil {
			fs.Close()
			return nil, err
		}
	}

	w := &Watcher{
		repo:     repo,
		fs:       fs,
		events:   make(chan Event, 1),
		done:     make(chan struct{}),
		debounce: DefaultDebounce,
	}
	go w.run()
	return w, nil
}

// Events is the channel repository changes arrive on. It is closed
// when the watcher is closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and closes the Events channel.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.events)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// The refs directories appear on the first commit; pick
			// them up as they are created.
			if event.Op&fsnotify.Create != 0 {
				switch filepath.Base(event.Name) {
				case "refs":
					// heads may already exist by the time the create
					// event for refs arrives.
					w.fs.Add(event.Name)
					w.fs.Add(filepath.Join(event.Name, "heads"))
					continue
				case "heads":
					w.fs.Add(event.Name)
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			// Debounce: a checkout or commit touches several files in
			// quick succession, report them as one change.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.emit()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Error("watch error", "err", err)
		}
	}
}

// relevant filters events down to writes and renames of the control
// files that define repository state. Ref writes go through a temp
// file and a rename, so renames count.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if name == "index.json" || name == "HEAD" || name == "MERGE_STATE.json" {
		return true
	}
	return filepath.Base(filepath.Dir(event.Name)) == "heads"
}

func (w *Watcher) emit() {
	status, err := w.repo.Status(context.Background())
	if err != nil {
		logger.Error("status after change", "err", err)
		return
	}
	select {
	case w.events <- Event{Status: status}:
	default:
		// A pending event is as good as a fresh one, the consumer
		// re-reads status anyway.
	}
}
