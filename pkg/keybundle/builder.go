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

package keybundle

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
)

// StoreBuilder configures a bundle loaded from a key container. Fields may
// be set in any order; validation happens in Build.
//
//	bundle, err := keybundle.NewStoreBuilder(opener).
//	    Location("file:/etc/turbo/server.p12").
//	    StorePassphrase("changeit").
//	    Alias("server").
//	    Build(ctx)
type StoreBuilder struct {
	opener          keystore.Opener
	locations       []string
	format          keystore.Format
	storePassphrase string
	alias           string
	keyPassphrase   string
}

// NewStoreBuilder returns a builder that opens locations with opener.
func NewStoreBuilder(opener keystore.Opener) *StoreBuilder {
	return &StoreBuilder{opener: opener, format: keystore.DefaultFormat}
}

// Location sets the primary container location.
func (b *StoreBuilder) Location(location string) *StoreBuilder {
	if len(b.locations) == 0 {
		b.locations = []string{location}
	} else {
		b.locations[0] = location
	}
	return b
}

// Fallback appends locations tried when the primary one cannot be loaded.
func (b *StoreBuilder) Fallback(locations ...string) *StoreBuilder {
	if len(b.locations) == 0 {
		b.locations = []string{""}
	}
	b.locations = append(b.locations, locations...)
	return b
}

// Format sets the container format. PKCS12 is the default.
func (b *StoreBuilder) Format(format keystore.Format) *StoreBuilder {
	b.format = format
	return b
}

// StorePassphrase sets the container passphrase. Empty is allowed.
func (b *StoreBuilder) StorePassphrase(passphrase string) *StoreBuilder {
	b.storePassphrase = passphrase
	return b
}

// Alias sets the entry alias.
func (b *StoreBuilder) Alias(alias string) *StoreBuilder {
	b.alias = alias
	return b
}

// KeyPassphrase sets the entry passphrase.
func (b *StoreBuilder) KeyPassphrase(passphrase string) *StoreBuilder {
	b.keyPassphrase = passphrase
	return b
}

// Build validates the configuration, loads the container and extracts the
// entry.
func (b *StoreBuilder) Build(ctx context.Context) (*KeyBundle, error) {
	if b.opener == nil {
		return nil, fmt.Errorf("%w: opener is required", ErrInvalidArgument)
	}
	if len(b.locations) == 0 || isBlank(b.locations[0]) {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidArgument)
	}
	if isBlank(b.alias) {
		return nil, fmt.Errorf("%w: alias is required", ErrInvalidArgument)
	}

	store, _, err := keystore.LoadFirst(ctx, b.opener, b.format, b.storePassphrase, b.locations...)
	if err != nil {
		return nil, err
	}
	return FromStore(store, b.alias, b.keyPassphrase)
}

// PEMBuilder configures a bundle parsed from PEM text, either inline or
// read from a location.
type PEMBuilder struct {
	opener        keystore.Opener
	location      string
	text          string
	keyPassphrase string
}

// NewPEMBuilder returns a builder that opens locations with opener. opener
// may be nil when only Text is used.
func NewPEMBuilder(opener keystore.Opener) *PEMBuilder {
	return &PEMBuilder{opener: opener}
}

// Location sets where the PEM text is read from.
func (b *PEMBuilder) Location(location string) *PEMBuilder {
	b.location = location
	return b
}

// Text sets inline PEM text. It takes precedence over Location.
func (b *PEMBuilder) Text(pemText string) *PEMBuilder {
	b.text = pemText
	return b
}

// KeyPassphrase sets the private key passphrase. Leave it empty for an
// unencrypted key.
func (b *PEMBuilder) KeyPassphrase(passphrase string) *PEMBuilder {
	b.keyPassphrase = passphrase
	return b
}

// Build validates the configuration and parses the PEM text.
func (b *PEMBuilder) Build(ctx context.Context) (*KeyBundle, error) {
	if !isBlank(b.text) {
		return FromPEM([]byte(b.text), b.keyPassphrase)
	}
	if isBlank(b.location) {
		return nil, fmt.Errorf("%w: location or text is required", ErrInvalidArgument)
	}
	if b.opener == nil {
		return nil, fmt.Errorf("%w: opener is required", ErrInvalidArgument)
	}

	rc, err := b.opener.Open(ctx, b.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keystore.ErrIO, err)
	}
	defer keystore.CloseQuietly(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keystore.ErrIO, err)
	}
	return FromPEM(data, b.keyPassphrase)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
