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

package server

import (
	"bytes"
	"context"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-turbocharger/internal/testutil"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const serverYAML = `
metrics:
  enabled: false
logging:
  level: debug
  format: text
`

type env struct {
	dir        string
	configPath string
	fx         *testutil.Fixture
	logs       *lockedBuffer
}

func newEnv(t *testing.T, extra string) *env {
	t.Helper()
	dir := t.TempDir()
	fx := testutil.NewFixture(t, afero.NewOsFs(), dir)
	e := &env{
		dir:        dir,
		configPath: filepath.Join(dir, "turbo.yaml"),
		fx:         fx,
		logs:       &lockedBuffer{},
	}
	e.write(t, fx.ConfigYAML()+serverYAML+extra)
	return e
}

func (e *env) write(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0o600))
}

func (e *env) server(t *testing.T) *Server {
	t.Helper()
	s, err := New(e.configPath, WithLogOutput(e.logs))
	require.NoError(t, err)
	return s
}

// withoutSM2 drops the sm2 algorithm from the fixture configuration.
func withoutSM2(yaml string) string {
	var out []string
	skip := false
	for _, line := range strings.Split(yaml, "\n") {
		if line == "  sm2:" {
			skip = true
			continue
		}
		if skip && strings.HasPrefix(line, "    ") {
			continue
		}
		skip = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func TestNew(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)

	reg := s.Registry()
	require.NotNil(t, reg)
	assert.Equal(t, []string{"es256", "hs256", "rs256", "sm2"}, reg.Names())

	require.NotNil(t, s.HealthChecker())
	assert.Equal(t, []string{
		"algorithm:es256", "algorithm:hs256", "algorithm:rs256", "algorithm:sm2",
	}, s.HealthChecker().Checks())
	assert.Contains(t, e.logs.String(), "Server initialized")
}

func TestNew_Failures(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	e := newEnv(t, "")
	require.NoError(t, os.Remove(e.fx.P12Path))
	_, err = New(e.configPath, WithLogOutput(e.logs))
	assert.ErrorContains(t, err, "failed to build registry")
}

func TestNew_WithFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	fx := testutil.NewFixture(t, fs, "/etc/turbo")
	require.NoError(t, afero.WriteFile(fs, "/etc/turbo/turbo.yaml", []byte(fx.ConfigYAML()+serverYAML), 0o600))

	s, err := New("/etc/turbo/turbo.yaml", WithFs(fs), WithLogOutput(&lockedBuffer{}))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Registry().Len())
}

func TestReload(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)
	before := s.Registry()

	e.write(t, withoutSM2(e.fx.ConfigYAML())+serverYAML)
	require.NoError(t, s.Reload(context.Background()))

	after := s.Registry()
	assert.NotSame(t, before, after)
	assert.Equal(t, []string{"es256", "hs256", "rs256"}, after.Names())
	assert.NotContains(t, s.HealthChecker().Checks(), "algorithm:sm2")
}

func TestReload_FailureKeepsRegistry(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)
	before := s.Registry()

	e.write(t, "bundles: [")
	assert.Error(t, s.Reload(context.Background()))
	assert.Same(t, before, s.Registry())

	// valid YAML, unloadable key material
	e.write(t, strings.Replace(e.fx.ConfigYAML(), e.fx.StorePass, "wrongpass", 1)+serverYAML)
	assert.Error(t, s.Reload(context.Background()))
	assert.Same(t, before, s.Registry())
	assert.Contains(t, e.logs.String(), "keeping previous configuration")
}

func TestReload_Logging(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)

	e.write(t, e.fx.ConfigYAML()+"\nmetrics:\n  enabled: false\nlogging:\n  level: info\n  format: json\n")
	require.NoError(t, s.Reload(context.Background()))

	s.logger.Info("after reload", logging.String("marker", "json-line"))
	s.logger.Debug("suppressed", logging.String("marker", "debug-line"))
	logs := e.logs.String()
	assert.Contains(t, logs, `"marker":"json-line"`)
	assert.NotContains(t, logs, "debug-line")
}

func TestStartAndShutdown(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.StartListener(ln))

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health/startup")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown())
	s.WaitForShutdown()
	assert.False(t, s.HealthChecker().IsStarted())
}

func TestWatchReload(t *testing.T) {
	e := newEnv(t, "\nwatch:\n  enabled: true\n  debounce: 50ms\n")
	s := e.server(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.StartListener(ln))
	t.Cleanup(func() { _ = s.Shutdown() })

	// StartListener returns once the watcher has registered its paths.
	require.Contains(t, e.logs.String(), "Watching for changes")

	e.write(t, withoutSM2(e.fx.ConfigYAML())+serverYAML+"\nwatch:\n  enabled: true\n  debounce: 50ms\n")
	require.Eventually(t, func() bool {
		return s.Registry().Len() == 3
	}, 10*time.Second, 50*time.Millisecond)
}

func TestStartWatcher_RunError(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)

	require.NoError(t, os.Remove(e.fx.PEMPath))

	err := s.startWatcher()
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotContains(t, e.logs.String(), "Watching for changes")
}

func TestWatchPaths(t *testing.T) {
	e := newEnv(t, "")
	s := e.server(t)

	paths := s.watchPaths(s.config)
	assert.Contains(t, paths, e.configPath)
	assert.Contains(t, paths, e.fx.P12Path)
	assert.Contains(t, paths, e.fx.PEMPath)
	assert.Len(t, paths, 3)
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/etc/turbo/server.p12", "/etc/turbo/server.p12", true},
		{"file:///etc/turbo/server.p12", "/etc/turbo/server.p12", true},
		{"file:relative.pem", "relative.pem", true},
		{"https://keys.example.com/server.p12", "", false},
		{"base64:AAAA", "", false},
		{"${env:KEY_PATH}", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := localPath(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSwapLogger(t *testing.T) {
	var first, second lockedBuffer
	l1, err := logging.New(logging.Config{Level: "info", Format: "text", Output: &first})
	require.NoError(t, err)
	l2, err := logging.New(logging.Config{Level: "info", Format: "json", Output: &second})
	require.NoError(t, err)

	root := newSwapLogger(l1)
	child := root.With(logging.String("component", "rest"))
	child.Info("one")
	root.Swap(l2)
	child.Info("two")

	assert.Contains(t, first.String(), "component=rest")
	assert.NotContains(t, first.String(), "two")
	assert.Contains(t, second.String(), `"component":"rest"`)
	assert.Contains(t, second.String(), `"msg":"two"`)
}
