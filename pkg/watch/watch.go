// Package watch calls a function whenever a log file is written, coalescing
// bursts of writes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const DefaultDebounce = 2 * time.Second

type Options struct {
	Debounce   time.Duration
	RunOnStart bool
}

type Option func(*Options)

// WithDebounce sets how long the file must stay quiet before fn runs.
func WithDebounce(d time.Duration) Option {
	return func(opts *Options) {
		opts.Debounce = d
	}
}

// WithRunOnStart calls fn once before waiting for changes.
func WithRunOnStart(run bool) Option {
	return func(opts *Options) {
		opts.RunOnStart = run
	}
}

type Watcher struct {
	path string
	fn   func(ctx context.Context) error
	opts *Options
}

func New(path string, fn func(ctx context.Context) error, opts ...Option) (*Watcher, error) {
	options := &Options{Debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(options)
	}
	if fn == nil {
		return nil, errors.New("watch callback is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: abs, fn: fn, opts: options}, nil
}

// Run blocks until ctx is cancelled or the watcher fails. The parent
// directory is watched so the file may be created or replaced later.
// Errors returned by fn are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "watching %s", filepath.Dir(w.path))
	}

	if w.opts.RunOnStart {
		w.call(ctx)
	}

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("could not retrieve event")
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.WithField("event", event.Op.String()).Debug("log file changed")
			timer.Reset(w.opts.Debounce)

		case <-timer.C:
			w.call(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("could not retrieve error")
			}
			return err
		}
	}
}

func (w *Watcher) call(ctx context.Context) {
	if err := w.fn(ctx); err != nil {
		log.WithField("path", w.path).Errorf("error handling log change: %v", err)
	}
}
