// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serveraddr turns the addresses an operator types in into a
// connection URI and the server name the console shows for it.
package serveraddr

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	// DefaultPort is appended to hosts given without a port.
	DefaultPort = "27017"

	schemePrefix = "mongodb"
	standardURI  = "mongodb://"
	srvScheme    = "mongodb+srv"
)

// ErrEmptyAddress is returned for blank addresses.
var ErrEmptyAddress = errors.New("empty server address")

// Normalize returns the connection URI for address together with the server
// name. Addresses without a scheme get the mongodb:// prefix. The name is the
// host part of the URI with the default port added where it was omitted, so
// credentials never end up in it.
func Normalize(address string) (uri string, name string, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", ErrEmptyAddress
	}

	uri = address
	if !strings.HasPrefix(address, schemePrefix) {
		uri = standardURI + address
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid server address %q: %w", address, err)
	}

	host := u.Host
	if host == "" {
		return "", "", fmt.Errorf("invalid server address %q: missing host", address)
	}

	if u.Scheme == srvScheme {
		return uri, host, nil
	}

	return uri, WithDefaultPort(host), nil
}

// Name is Normalize without the URI.
func Name(address string) (string, error) {
	_, name, err := Normalize(address)

	return name, err
}

// WithDefaultPort appends DefaultPort to host unless it already carries a
// port. Seed lists (a:1,b:2) are returned unchanged.
func WithDefaultPort(host string) string {
	if host == "" || strings.Contains(host, ",") {
		return host
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host + ":" + DefaultPort
	}

	return net.JoinHostPort(host, DefaultPort)
}
