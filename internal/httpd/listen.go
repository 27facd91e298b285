// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd

import (
	"fmt"
	"net"
	"strings"
)

// DefaultListenAddress is where the server listens unless told otherwise
const DefaultListenAddress = "0.0.0.0:8080"

const unixPrefix = "unix:"

// ListenAddress is either a TCP address or a unix socket path
type ListenAddress struct {
	Network string
	Address string
}

// ParseListenAddress parses a TCP host:port, a unix:<path> or a bare
// socket path
func ParseListenAddress(s string) (ListenAddress, error) {
	switch {
	case s == "":
		return ListenAddress{}, fmt.Errorf("empty listen address")

	case strings.HasPrefix(s, unixPrefix):
		path := strings.TrimPrefix(s, unixPrefix)
		if path == "" {
			return ListenAddress{}, fmt.Errorf("invalid listen address %q: empty socket path", s)
		}
		return ListenAddress{Network: "unix", Address: path}, nil

	case strings.Contains(s, "/") && !strings.Contains(s, ":"):
		return ListenAddress{Network: "unix", Address: s}, nil
	}

	if _, err := net.ResolveTCPAddr("tcp", s); err != nil {
		return ListenAddress{}, fmt.Errorf("invalid listen address %q: %w", s, err)
	}
	return ListenAddress{Network: "tcp", Address: s}, nil
}

// IsUnix returns whether the address is a unix socket
func (a ListenAddress) IsUnix() bool {
	return a.Network == "unix"
}

// String returns the address as a URL
func (a ListenAddress) String() string {
	if a.IsUnix() {
		return "unix://" + a.Address
	}
	return "http://" + a.Address
}
