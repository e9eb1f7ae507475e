package dataset

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher signals when conversation files in a directory are created
// or rewritten, so callers can trigger a fresh training run.
type Watcher struct {
	fsw     *fsnotify.Watcher
	logger  *log.Logger
	Changes chan string
	done    chan struct{}
}

// NewWatcher starts watching dir for .json and .txt changes.
func NewWatcher(dir string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		fsw:     fsw,
		logger:  logger.With("component", "watcher"),
		Changes: make(chan string, 8),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") && !strings.HasSuffix(event.Name, ".txt") {
				continue
			}
			w.logger.Debug("conversation file changed", "file", event.Name)
			select {
			case w.Changes <- event.Name:
			default:
				// A pending notification already covers this change.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "err", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
