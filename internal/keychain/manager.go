// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores database connection URIs in the OS credential store.
// A database configured with uri "keyring:<name>" has its real URI looked up
// here at request time, so credentials never need to appear in the config
// file or the environment.
//
// On macOS the security command is used directly; elsewhere the 99designs
// keyring library picks a native backend (Secret Service, KWallet, pass or
// Windows Credential Manager).
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "sqlworker"

// keyPrefix namespaces connection URIs inside the service.
const keyPrefix = "db_uri:"

// ErrNotFound is returned when no URI is stored under a name.
var ErrNotFound = errors.New("no connection uri stored under that name")

// backend is the minimal store the manager needs.
type backend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Manager provides thread-safe access to stored connection URIs.
type Manager struct {
	mu      sync.RWMutex
	backend backend
}

// NewManager opens the platform credential store.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if b, err := newSecurityBackend(); err == nil {
			return &Manager{backend: b}, nil
		}
		// Fall through to the keyring library.
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an already opened keyring. Tests pass a
// keyring.NewArrayKeyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{backend: ringBackend{ring: ring}}
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on " + runtime.GOOS)
	}
	return keyring.Open(keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	})
}

// SaveDBURI stores the connection URI for name.
func (m *Manager) SaveDBURI(name, uri string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Set(keyPrefix+name, uri)
}

// LoadDBURI returns the connection URI stored for name.
func (m *Manager) LoadDBURI(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uri, err := m.backend.Get(keyPrefix + name)
	if err != nil {
		return "", err
	}
	if uri == "" {
		return "", ErrNotFound
	}
	return uri, nil
}

// DeleteDBURI removes the URI stored for name. Removing a missing entry is not an error.
func (m *Manager) DeleteDBURI(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Delete(keyPrefix + name)
}

// ringBackend adapts keyring.Keyring to backend.
type ringBackend struct {
	ring keyring.Keyring
}

func (r ringBackend) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringBackend) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringBackend) Delete(key string) error {
	if err := r.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
