// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build darwin

package keychain

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// securityBackend stores items with the macOS security command.
type securityBackend struct{}

func newSecurityBackend() (*securityBackend, error) {
	if _, err := exec.LookPath("security"); err != nil {
		return nil, fmt.Errorf("security command not found: %w", err)
	}
	return &securityBackend{}, nil
}

func (s *securityBackend) Set(key, value string) error {
	cmd := exec.Command("security", "add-generic-password",
		"-a", ServiceName,
		"-s", key,
		"-w", value,
		"-U", // update if exists
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to store %q in keychain: %s: %w", key, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

func (s *securityBackend) Get(key string) (string, error) {
	cmd := exec.Command("security", "find-generic-password", "-a", ServiceName, "-s", key, "-w")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "could not be found") {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve from keychain: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (s *securityBackend) Delete(key string) error {
	cmd := exec.Command("security", "delete-generic-password", "-a", ServiceName, "-s", key)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "could not be found") {
			return nil
		}
		return fmt.Errorf("failed to delete from keychain: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
