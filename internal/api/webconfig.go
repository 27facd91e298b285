// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"fmt"
	"sync"

	"github.com/lirios/radicle-httpd/internal/web"
)

// WebConfig holds the live web configuration, shared by all requests and
// replaced when the configuration is reloaded
type WebConfig struct {
	mu     sync.RWMutex
	config web.Config
}

// NewWebConfig creates a WebConfig holding config
func NewWebConfig(config web.Config) *WebConfig {
	return &WebConfig{config: config.Clone()}
}

// Read returns a snapshot of the current configuration
func (c *WebConfig) Read() web.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.config.Clone()
}

// Update applies fn to the configuration while holding the write lock.
// fn must not block.
func (c *WebConfig) Update(fn func(config *web.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.config)
}

// Reload builds a new configuration with load and swaps it in. When load
// fails the current configuration is kept and the error returned.
func (c *WebConfig) Reload(load func() (web.Config, error)) error {
	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to reload web configuration: %w", err)
	}
	config = config.Clone()

	c.Update(func(current *web.Config) {
		*current = config
	})

	return nil
}
