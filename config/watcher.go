// ABOUTME: Hot reload of the learning file via fsnotify
// ABOUTME: Publishes each valid snapshot atomically; invalid edits keep the previous one
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LearningSource hands out the current learning snapshot.
type LearningSource interface {
	Learning() *Learning
}

// Static is a LearningSource that never changes.
type Static struct {
	L *Learning
}

func (s Static) Learning() *Learning {
	if s.L == nil {
		return DefaultLearning()
	}
	return s.L
}

// Watcher keeps the learning snapshot in sync with its file.
type Watcher struct {
	path        string
	logger      *zap.Logger
	current     atomic.Pointer[Learning]
	watcher     *fsnotify.Watcher
	debounceDur time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher loads path once and prepares a watcher for it. A broken file at
// startup is an error; later broken edits are logged and ignored.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	initial, err := LoadLearning(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:        path,
		logger:      logger,
		watcher:     fw,
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	w.current.Store(initial)
	return w, nil
}

// Learning returns the latest valid snapshot.
func (w *Watcher) Learning() *Learning {
	return w.current.Load()
}

// Start watches the directory of the learning file. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.logger.Warn("learning watcher: cannot create config dir", zap.String("dir", dir), zap.Error(err))
	}
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("learning watcher: close failed", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounceDur)
			} else {
				timer.Reset(w.debounceDur)
			}
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("learning watcher error", zap.Error(err))

		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	next, err := LoadLearning(w.path)
	if err != nil {
		w.logger.Warn("learning config rejected, keeping previous", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(next)
	w.logger.Info("learning config reloaded",
		zap.String("path", w.path),
		zap.Int("skip_domains", len(next.SkipDomains)),
		zap.String("min_confidence", string(next.MinConfidence)),
	)
}
