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

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// start runs w in the background and waits until its paths are registered.
func start(t *testing.T, w *Watcher) (cancel func() error) {
	t.Helper()
	ready := make(chan struct{})
	WithOnReady(func() { close(ready) })(w)

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-ready:
	case err := <-done:
		cancelCtx()
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancelCtx()
		t.Fatal("watcher did not become ready")
	}

	stopped := false
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancelCtx()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
			return nil
		}
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func collector() (Handler, chan Event) {
	ch := make(chan Event, 64)
	return func(e Event) { ch <- e }, ch
}

func waitFor(t *testing.T, ch chan Event, path string, op Op) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Path == path && e.Op.Has(op) {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", op, path)
			return Event{}
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNew_Validation(t *testing.T) {
	h, _ := collector()

	_, err := New(nil, []string{"."})
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = New(h, nil)
	assert.ErrorIs(t, err, ErrNoPaths)

	_, err = New(h, []string{"."}, WithFilter("[bad"))
	assert.Error(t, err)
}

func TestRun_MissingPath(t *testing.T) {
	h, _ := collector()
	w, err := New(h, []string{filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "NONE", Op(0).String())
	assert.Equal(t, "CREATE|WRITE", (Create | Write).String())
	assert.True(t, (Create | Remove).Has(Remove))
	assert.False(t, Create.Has(Create|Write))
}

func TestRun_DirectoryEvents(t *testing.T) {
	dir := t.TempDir()
	h, ch := collector()
	w, err := New(h, []string{dir})
	require.NoError(t, err)
	start(t, w)

	path := filepath.Join(dir, "keystore.p12")
	writeFile(t, path, "one")
	waitFor(t, ch, path, Create)

	require.NoError(t, os.Remove(path))
	waitFor(t, ch, path, Remove)
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	h, ch := collector()
	w, err := New(h, []string{dir}, WithFilter("*.yaml"))
	require.NoError(t, err)
	start(t, w)

	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	target := filepath.Join(dir, "config.yaml")
	writeFile(t, target, "x")

	e := waitFor(t, ch, target, Create)
	assert.Equal(t, target, e.Path)
	for len(ch) > 0 {
		assert.Equal(t, target, (<-ch).Path)
	}
}

func TestRun_SingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.yaml")
	other := filepath.Join(dir, "other.yaml")
	writeFile(t, target, "a")

	h, ch := collector()
	w, err := New(h, []string{target})
	require.NoError(t, err)
	start(t, w)

	writeFile(t, other, "b")
	writeFile(t, target, "c")
	waitFor(t, ch, target, Write)
	for len(ch) > 0 {
		assert.Equal(t, target, (<-ch).Path)
	}

	// replacement by rename is still observed
	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeFile(t, tmp, "d")
	require.NoError(t, os.Rename(tmp, target))
	waitFor(t, ch, target, Create)
}

func TestRun_Debounce(t *testing.T) {
	dir := t.TempDir()
	h, ch := collector()
	w, err := New(h, []string{dir}, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	start(t, w)

	path := filepath.Join(dir, "bundle.pem")
	for i := 0; i < 5; i++ {
		writeFile(t, path, "data")
	}

	e := waitFor(t, ch, path, Create)
	assert.True(t, e.Op.Has(Write))

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %+v", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h, _ := collector()
	w, err := New(h, []string{t.TempDir()})
	require.NoError(t, err)
	stop := start(t, w)
	assert.NoError(t, stop())
}
