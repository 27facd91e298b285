// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/web"
)

// NodeConfig represents the node section of the configuration file
type NodeConfig struct {
	ID    identity.NodeID `yaml:"id,omitempty"`
	Alias string          `yaml:"alias,omitempty"`
}

// Config represents the configuration file
type Config struct {
	path string
	Node NodeConfig `yaml:"node"`
	Web  web.Config `yaml:"web"`
}

// ErrEmptyConfig is returned by ReadConfig when the file has no content
var ErrEmptyConfig = errors.New("configuration file is empty")

// OpenConfig opens path; a missing or empty file yields the default
// configuration
func OpenConfig(path string) (*Config, error) {
	config, err := ReadConfig(path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrEmptyConfig) {
		return &Config{path: path}, nil
	}
	return config, err
}

// ReadConfig reads path, failing when the file is missing or empty
func ReadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf, err := ioutil.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyConfig)
	}

	var config Config
	if err := yaml.UnmarshalStrict(buf, &config); err != nil {
		return nil, err
	}

	if config.Node.ID != "" {
		if _, err := identity.ParseNodeID(config.Node.ID.String()); err != nil {
			return nil, err
		}
	}

	config.path = path

	return &config, nil
}

// Path returns the path of the configuration file
func (c *Config) Path() string {
	return c.path
}
