package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/cadence/engine/core"
)

// Watcher reloads the configuration file when it changes on disk. The
// command line keeps precedence over reloaded values.
type Watcher struct {
	path string
	args []string

	fsnotify *fsnotify.Watcher
	changes  chan *Config
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// Watch follows the directory of path so that editors replacing the file
// are noticed too.
func Watch(path string, args []string) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config: nothing to watch")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		args:     args,
		fsnotify: fsWatch,
		changes:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Changes delivers the most recent successfully parsed configuration.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	c := Default()
	if err := c.merge(w.path); err != nil {
		// half written files show up as parse errors; the next write retries
		core.LogWarn("config reload skipped: %s", err)
		return
	}
	ApplyArgs(c, w.args)
	c.normalize()

	// keep only the newest configuration
	select {
	case <-w.changes:
	default:
	}
	w.changes <- c
	core.LogInfo("configuration reloaded from %s", w.path)
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsnotify.Close()
		w.wg.Wait()
	})
	return err
}
