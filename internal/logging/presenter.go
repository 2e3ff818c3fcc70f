// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// ConnectErrorType is the category of a failed database or broker connection.
type ConnectErrorType int

const (
	ConnectErrorUnknown ConnectErrorType = iota
	ConnectErrorTimeout
	ConnectErrorDNS
	ConnectErrorRefused
	ConnectErrorTLS
	ConnectErrorAuth
	ConnectErrorFile
)

// ClassifyConnectError categorizes a connection error.
func ClassifyConnectError(err error) ConnectErrorType {
	if err == nil {
		return ConnectErrorUnknown
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectErrorDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ConnectErrorTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectErrorRefused
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return ConnectErrorTimeout
	case strings.Contains(lower, "no such host"):
		return ConnectErrorDNS
	case strings.Contains(lower, "connection refused"):
		return ConnectErrorRefused
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") || strings.Contains(lower, "ssl"):
		return ConnectErrorTLS
	case strings.Contains(lower, "password authentication failed") ||
		strings.Contains(lower, "login failed") ||
		strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "authorization violation"):
		return ConnectErrorAuth
	case strings.Contains(lower, "unable to open database file") || strings.Contains(lower, "no such file"):
		return ConnectErrorFile
	}
	return ConnectErrorUnknown
}

// FormatConnectError renders a connection failure with troubleshooting hints.
func FormatConnectError(target string, err error) string {
	var b strings.Builder

	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprintf("Cannot connect to %s", target))
	b.WriteString("\n")

	switch ClassifyConnectError(err) {
	case ConnectErrorTimeout:
		b.WriteString("The server took too long to respond.\n")
		b.WriteString("  • Check that the host is reachable from this machine\n")
		b.WriteString("  • Raise kwargs.connect_timeout if the network is slow\n")
	case ConnectErrorDNS:
		b.WriteString("The host name could not be resolved.\n")
		b.WriteString("  • Check the host part of the URI\n")
	case ConnectErrorRefused:
		b.WriteString("The server is not accepting connections.\n")
		b.WriteString("  • Check the port and that the service is running\n")
	case ConnectErrorTLS:
		b.WriteString("The secure connection could not be established.\n")
		b.WriteString("  • Check sslmode/encrypt parameters and certificates\n")
	case ConnectErrorAuth:
		b.WriteString("The server rejected the credentials.\n")
		b.WriteString("  • Check user and password, or the keyring entry\n")
	case ConnectErrorFile:
		b.WriteString("The database file could not be opened.\n")
		b.WriteString("  • Check that the directory exists and is writable\n")
	}

	if err != nil {
		b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	return b.String()
}
