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
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider looks up a key. found is false when the key does not exist.
type Provider interface {
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, key string) (string, bool, error)

// Lookup calls f.
func (f ProviderFunc) Lookup(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

// EnvProvider reads the process environment.
func EnvProvider() Provider {
	return ProviderFunc(func(_ context.Context, key string) (string, bool, error) {
		v, ok := os.LookupEnv(key)
		return v, ok, nil
	})
}

// Resolver expands ${provider:key:-default} placeholders.
type Resolver struct {
	providers map[string]Provider
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProvider registers p under name, replacing any provider of that name.
func WithProvider(name string, p Provider) ResolverOption {
	return func(r *Resolver) { r.providers[strings.ToLower(name)] = p }
}

// NewResolver returns a Resolver with the env provider registered.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{providers: map[string]Provider{"env": EnvProvider()}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the registered provider names.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Resolve expands every placeholder in s. Text without placeholders is
// returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder in %q", ErrUnresolved, s)
		}
		end += start

		value, err := r.expand(ctx, s[start+2:end])
		if err != nil {
			return "", err
		}
		b.WriteString(s[:start])
		b.WriteString(value)
		s = s[end+1:]
	}
}

// expand resolves the inside of one placeholder.
func (r *Resolver) expand(ctx context.Context, expr string) (string, error) {
	provider, key := "env", expr
	if i := strings.IndexByte(expr, ':'); i >= 0 && !strings.HasPrefix(expr[i:], ":-") {
		provider, key = strings.ToLower(expr[:i]), expr[i+1:]
	}

	def, hasDefault := "", false
	if i := strings.Index(key, ":-"); i >= 0 {
		key, def, hasDefault = key[:i], key[i+2:], true
	}
	if key == "" {
		return "", fmt.Errorf("%w: empty key in ${%s}", ErrUnresolved, expr)
	}

	p, ok := r.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider %q", ErrUnresolved, provider)
	}
	value, found, err := p.Lookup(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %s:%s: %w", ErrUnresolved, provider, key, err)
	}
	if !found {
		if hasDefault {
			return def, nil
		}
		return "", fmt.Errorf("%w: %s:%s not found", ErrUnresolved, provider, key)
	}
	return value, nil
}
