// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package watch reports file changes under a set of paths until its
// context is cancelled.
//
// Files are watched through their parent directory so that editors which
// replace a file by rename keep being observed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
)

var (
	// ErrNoPaths is returned when a watcher has nothing to watch
	ErrNoPaths = errors.New("watch: no paths")

	// ErrNoHandler is returned when a watcher has no handler
	ErrNoHandler = errors.New("watch: nil handler")
)

// Op is a set of file operations.
type Op uint8

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
)

// Has reports whether o contains every bit of other.
func (o Op) Has(other Op) bool { return o&other == other }

func (o Op) String() string {
	var parts []string
	for _, n := range []struct {
		op   Op
		name string
	}{{Create, "CREATE"}, {Write, "WRITE"}, {Remove, "REMOVE"}, {Rename, "RENAME"}} {
		if o.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is a change to one path. With debouncing, Op accumulates every
// operation seen for the path during the quiet period.
type Event struct {
	Path string
	Op   Op
}

// Handler receives events. Handlers run on the watcher's goroutine, one at
// a time.
type Handler func(Event)

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter only reports paths whose base name matches the glob pattern.
func WithFilter(pattern string) Option {
	return func(w *Watcher) { w.filter = pattern }
}

// WithDebounce coalesces events per path until no event has been seen for d.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnReady calls fn once Run has registered every path. Events that
// happen after fn is called are reported.
func WithOnReady(fn func()) Option {
	return func(w *Watcher) { w.onReady = fn }
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNop(l) }
}

// Watcher watches files and directories.
type Watcher struct {
	paths    []string
	handler  Handler
	filter   string
	debounce time.Duration
	logger   logging.Logger
	onReady  func()
}

// New creates a Watcher over paths. Directories are watched for every entry,
// files are watched individually.
func New(handler Handler, paths []string, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	w := &Watcher{
		paths:   append([]string(nil), paths...),
		handler: handler,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.filter != "" {
		if _, err := filepath.Match(w.filter, ""); err != nil {
			return nil, fmt.Errorf("watch: invalid filter %q: %w", w.filter, err)
		}
	}
	return w, nil
}

// Run blocks, delivering events to the handler, until ctx is cancelled.
// It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	targets, err := w.targets()
	if err != nil {
		return err
	}
	for dir := range targets {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch: failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching", logging.String("dir", dir))
	}
	if w.onReady != nil {
		w.onReady()
	}

	var (
		pending = make(map[string]Op)
		order   []string
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			e, ok := w.accept(ev, targets)
			if !ok {
				continue
			}
			if w.debounce <= 0 {
				w.handler(e)
				continue
			}
			if _, seen := pending[e.Path]; !seen {
				order = append(order, e.Path)
			}
			pending[e.Path] |= e.Op
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			for _, p := range order {
				w.handler(Event{Path: p, Op: pending[p]})
			}
			clear(pending)
			order = order[:0]
			timerC = nil

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// targets maps each watched directory to the file names of interest in it.
// A nil set means every entry.
func (w *Watcher) targets() (map[string]map[string]struct{}, error) {
	out := make(map[string]map[string]struct{})
	var files []string
	for _, p := range w.paths {
		clean := filepath.Clean(p)
		info, err := os.Stat(clean)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		if info.IsDir() {
			out[clean] = nil
			continue
		}
		files = append(files, clean)
	}
	for _, f := range files {
		dir := filepath.Dir(f)
		names, watched := out[dir]
		if watched && names == nil {
			continue
		}
		if names == nil {
			names = make(map[string]struct{})
			out[dir] = names
		}
		names[filepath.Base(f)] = struct{}{}
	}
	return out, nil
}

func (w *Watcher) accept(ev fsnotify.Event, targets map[string]map[string]struct{}) (Event, bool) {
	path := filepath.Clean(ev.Name)
	if names := targets[filepath.Dir(path)]; names != nil {
		if _, ok := names[filepath.Base(path)]; !ok {
			return Event{}, false
		}
	}
	if w.filter != "" {
		if ok, _ := filepath.Match(w.filter, filepath.Base(path)); !ok {
			return Event{}, false
		}
	}

	var op Op
	if ev.Has(fsnotify.Create) {
		op |= Create
	}
	if ev.Has(fsnotify.Write) {
		op |= Write
	}
	if ev.Has(fsnotify.Remove) {
		op |= Remove
	}
	if ev.Has(fsnotify.Rename) {
		op |= Rename
	}
	if op == 0 {
		return Event{}, false
	}
	return Event{Path: path, Op: op}, true
}
