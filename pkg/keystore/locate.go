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

package keystore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Opener opens a container by location. resource.Opener satisfies it.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// LoadFirst tries each location in order and returns the first store that
// both opens and loads, along with its location. When every candidate fails
// the joined errors are returned.
func LoadFirst(ctx context.Context, opener Opener, format Format, storePassphrase string, locations ...string) (*Store, string, error) {
	if len(locations) == 0 {
		return nil, "", ErrNoLocations
	}

	var errs []error
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		rc, err := opener.Open(ctx, location)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w: %w", location, ErrIO, err))
			continue
		}

		store, err := Load(rc, format, storePassphrase)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", location, err))
			continue
		}
		return store, location, nil
	}
	return nil, "", errors.Join(errs...)
}

// CloseQuietly closes c and discards the error. Use it on cleanup paths
// only.
func CloseQuietly(c io.Closer) {
	if c == nil {
		return
	}
	_ = c.Close()
}
