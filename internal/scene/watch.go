package scene

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/logger"
)

// DefaultDebounce is how long a burst of file events must stay quiet before
// a reload is signalled.
const DefaultDebounce = 250 * time.Millisecond

var assetExts = map[string]bool{
	".obj": true, ".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true, ".tga": true,
}

// Watcher signals when a scene file or an asset next to it changes. Bursts
// of events collapse into one signal, and signals not yet received collapse
// too.
type Watcher struct {
	path     string
	debounce time.Duration
	fs       *fsnotify.Watcher
	events   chan string
	done     chan struct{}
	wg       sync.WaitGroup
	log      *zap.Logger
}

// Watch starts watching the directory holding path. Editors often replace
// files instead of writing them, so the directory is watched rather than
// the file.
func Watch(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		path:     abs,
		debounce: debounce,
		fs:       fs,
		events:   make(chan string, 1),
		done:     make(chan struct{}),
		log:      logger.Named("scene"),
	}
	w.wg.Add(1)
	go w.run()
	w.log.Info("watching scene", zap.String("path", abs))
	return w, nil
}

// Events delivers the scene path after each settled change.
func (w *Watcher) Events() <-chan string { return w.events }

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(e.Name)
	if name == w.path {
		return true
	}
	return assetExts[strings.ToLower(filepath.Ext(name))]
}

func (w *Watcher) run() {
	defer w.wg.Done()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(e) {
				continue
			}
			w.log.Debug("scene file event", zap.String("file", e.Name), zap.Stringer("op", e.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("scene watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			select {
			case w.events <- w.path:
			default:
			}
		case <-w.done:
			return
		}
	}
}
