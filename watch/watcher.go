// Package watch reruns batch processing when inputs change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// JobFunc is a single batch run.
type JobFunc func(ctx context.Context) error

// Watcher runs job once on start and then after every quiet period following
// changes in watched directories. Jobs never overlap: changes noticed while a
// job is running produce exactly one follow-up job.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	job      JobFunc
	log      *zap.Logger
}

func New(dirs []string, debounce time.Duration, job JobFunc, log *zap.Logger) *Watcher {
	return &Watcher{
		dirs:     dirs,
		debounce: debounce,
		job:      job,
		log:      log.Named("watch"),
	}
}

// Run blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file system watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("Directory does not exist, not watching", zap.String("dir", dir))
				continue
			}
			return fmt.Errorf("unable to watch %s: %w", dir, err)
		}
		w.log.Info("Watching directory", zap.String("dir", dir))
		watched++
	}
	if watched == 0 {
		return errors.New("nothing to watch")
	}

	// single slot, pending job absorbs all later requests
	jobs := make(chan struct{}, 1)

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Go(func() { w.worker(ctx, jobs) })

	enqueue(jobs)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watching stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ignored(ev) {
				continue
			}
			w.log.Debug("Change noticed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(w.debounce)
		case <-timer.C:
			if !enqueue(jobs) {
				w.log.Debug("Job already pending")
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", zap.Error(err))
		}
	}
}

func enqueue(jobs chan<- struct{}) bool {
	select {
	case jobs <- struct{}{}:
		return true
	default:
		return false
	}
}

func (w *Watcher) worker(ctx context.Context, jobs <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-jobs:
			start := time.Now()
			if err := w.job(ctx); err != nil {
				w.log.Error("Batch failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
				continue
			}
			w.log.Info("Batch done", zap.Duration("elapsed", time.Since(start)))
		}
	}
}

// ignored filters out editor lock files, hidden files and attribute changes.
func ignored(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(ev.Name)
	return strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".")
}
