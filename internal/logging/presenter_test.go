// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConnectErrorType
	}{
		{"nil", nil, ConnectErrorUnknown},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.invalid"}, ConnectErrorDNS},
		{"refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ConnectErrorRefused},
		{"refused text", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ConnectErrorRefused},
		{"deadline", errors.New("context deadline exceeded"), ConnectErrorTimeout},
		{"auth", errors.New(`FATAL: password authentication failed for user "app"`), ConnectErrorAuth},
		{"sqlite file", errors.New("unable to open database file: out of memory (14)"), ConnectErrorFile},
		{"other", errors.New("boom"), ConnectErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyConnectError(tt.err); got != tt.want {
				t.Errorf("ClassifyConnectError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatConnectError_Masks(t *testing.T) {
	out := FormatConnectError("warehouse", errors.New("dial postgres://app:pw@db/x: connection refused"))
	if strings.Contains(out, "app:pw") {
		t.Errorf("FormatConnectError() leaked credentials: %s", out)
	}
	if !strings.Contains(out, "not accepting connections") {
		t.Errorf("FormatConnectError() missing hint: %s", out)
	}
}

func TestPresentError(t *testing.T) {
	got := PresentError("resolve warehouse", errors.New("postgres://u:p@h/db unreachable"))
	want := "resolve warehouse: postgres://*:*@h/db unreachable"
	if got != want {
		t.Errorf("PresentError() = %v, want %v", got, want)
	}
}
