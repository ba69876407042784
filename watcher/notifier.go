package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
)

// FSNotifier adapts fsnotify to Notifier. It watches root recursively and emits paths
// relative to root with forward slashes. Create, write, remove and rename all emit
// the same event.
type FSNotifier struct {
	root       string
	extensions map[string]bool
	watcher    *fsnotify.Watcher
	logger     logger.Logger
	events     chan string
	errors     chan error
	done       chan struct{}
	closeOnce  sync.Once
}

// NewFSNotifier starts watching root and its subdirectories. When extensions is
// non-empty only files with one of them are reported.
func NewFSNotifier(root string, extensions []string, log logger.Logger) (*FSNotifier, error) {
	if log == nil {
		log = logger.Nop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ret := &FSNotifier{
		root:       filepath.Clean(root),
		extensions: map[string]bool{},
		watcher:    w,
		logger:     log,
		events:     make(chan string, DefaultBuffer),
		errors:     make(chan error, 1),
		done:       make(chan struct{}),
	}
	for _, ext := range extensions {
		ret.extensions[strings.ToLower(ext)] = true
	}
	if err := ret.addTree(ret.root); err != nil {
		_ = w.Close()
		return nil, err
	}
	go ret.loop()
	return ret, nil
}

// Events returns changed paths.
func (n *FSNotifier) Events() <-chan string {
	return n.events
}

// Errors returns watch errors.
func (n *FSNotifier) Errors() <-chan error {
	return n.errors
}

// Close stops watching; Events is closed afterwards.
func (n *FSNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
	})
	return err
}

func (n *FSNotifier) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
			return filepath.SkipDir
		}
		return n.watcher.Add(path)
	})
}

func (n *FSNotifier) loop() {
	defer close(n.events)
	for {
		select {
		case <-n.done:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			default:
				n.logger.Warn().Err(err).Msg("watch error dropped")
			}
		}
	}
}

func (n *FSNotifier) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := n.addTree(event.Name); err != nil {
				n.logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch directory")
			}
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if len(n.extensions) > 0 && !n.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	rel, err := filepath.Rel(n.root, event.Name)
	if err != nil {
		return
	}
	select {
	case n.events <- filepath.ToSlash(rel):
	case <-n.done:
	}
}
