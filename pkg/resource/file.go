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
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// FileProvider reads the key as a file path. A trailing newline is trimmed.
func FileProvider(fsys afero.Fs) Provider {
	return ProviderFunc(func(_ context.Context, key string) (string, bool, error) {
		data, err := afero.ReadFile(fsys, key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("failed to read %s: %w", key, err)
		}
		return strings.TrimRight(string(data), "\r\n"), true, nil
	})
}
