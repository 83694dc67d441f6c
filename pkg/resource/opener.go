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

package resource

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
)

// Opener opens locations on the filesystem, over HTTP(S) or inline.
// It satisfies keystore.Opener.
type Opener struct {
	fs     afero.Fs
	client *retryablehttp.Client
	logger logging.Logger
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithFs sets the filesystem used for paths and file: locations.
func WithFs(fs afero.Fs) OpenerOption {
	return func(o *Opener) { o.fs = fs }
}

// WithHTTPClient replaces the retrying HTTP client.
func WithHTTPClient(c *retryablehttp.Client) OpenerOption {
	return func(o *Opener) { o.client = c }
}

// WithLogger sets the logger, which also receives retry messages.
func WithLogger(l logging.Logger) OpenerOption {
	return func(o *Opener) { o.logger = logging.OrNop(l) }
}

// NewOpener returns an Opener over the OS filesystem with three HTTP retries.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		fs:     afero.NewOsFs(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = NewHTTPClient(3, o.logger)
	}
	return o
}

// NewHTTPClient returns a retrying client that logs through logger and
// returns the final response instead of an error when retries run out.
func NewHTTPClient(retryMax int, logger logging.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 30 * time.Second
	c.Logger = leveledLogger{logging.OrNop(logger)}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// Open opens location for reading. The caller closes the stream.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scheme, rest := splitScheme(location)
	switch scheme {
	case "":
		return o.openFile(location)
	case "file":
		return o.openFile(strings.TrimPrefix(rest, "//"))
	case "http", "https":
		return o.openHTTP(ctx, location)
	case "base64":
		data, err := decodeInline(rest)
		if err != nil {
			return nil, fmt.Errorf("resource: invalid base64 location: %w", err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// ReadAll opens location and reads it fully.
func (o *Opener) ReadAll(ctx context.Context, location string) ([]byte, error) {
	rc, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (o *Opener) openFile(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	f, err := o.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("resource: failed to open %s: %w", path, err)
	}
	return f, nil
}

func (o *Opener) openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("resource: invalid request for %s: %w", url, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource: failed to fetch %s: %w", url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("resource: failed to fetch %s: status %d", url, resp.StatusCode)
	}
	o.logger.Debug("fetched resource", logging.String("url", url), logging.Int("status", resp.StatusCode))
	return resp.Body, nil
}

// splitScheme returns the lowercased scheme of location, or "" for a plain
// path. Single letters are treated as drive letters.
func splitScheme(location string) (scheme, rest string) {
	i := strings.IndexByte(location, ':')
	if i < 2 {
		return "", location
	}
	for _, c := range location[:i] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return "", location
		}
	}
	return strings.ToLower(location[:i]), location[i+1:]
}

func decodeInline(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// leveledLogger adapts a logging.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l logging.Logger
}

func (a leveledLogger) Error(msg string, kv ...any) { a.l.Error(msg, kvFields(kv)...) }
func (a leveledLogger) Info(msg string, kv ...any)  { a.l.Info(msg, kvFields(kv)...) }
func (a leveledLogger) Debug(msg string, kv ...any) { a.l.Debug(msg, kvFields(kv)...) }
func (a leveledLogger) Warn(msg string, kv ...any)  { a.l.Warn(msg, kvFields(kv)...) }

func kvFields(kv []any) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logging.Any(key, kv[i+1]))
	}
	return fields
}
