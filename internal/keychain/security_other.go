// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin

package keychain

import "errors"

// securityBackend only exists on macOS.
type securityBackend struct{ backend }

func newSecurityBackend() (*securityBackend, error) {
	return nil, errors.New("security backend only available on macOS")
}
