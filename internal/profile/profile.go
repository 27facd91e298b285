// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package profile opens the stores found in the node home directory
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/lirios/radicle-httpd/internal/cob"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/node"
	"github.com/lirios/radicle-httpd/internal/storage"
	"github.com/lirios/radicle-httpd/internal/web"
)

// Paths relative to the home directory
const (
	ConfigFile  = "config.yaml"
	StorageDir  = "storage"
	NodeDBFile  = "node/node.db"
	CobsDBFile  = "cobs/cache.db"
	homeEnvName = "RAD_HOME"
)

// DefaultHome returns $RAD_HOME, or ~/.radicle
func DefaultHome() string {
	if home := os.Getenv(homeEnvName); home != "" {
		return home
	}
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".radicle")
	}
	return ".radicle"
}

// Profile represents the node home directory
type Profile struct {
	home     string
	Config   *Config
	Storage  *storage.Storage
	Database *node.Database
	Cobs     *cob.Cache
}

// Load opens the profile at home
func Load(home string) (*Profile, error) {
	config, err := OpenConfig(filepath.Join(home, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("cannot open configuration file: %w", err)
	}

	store, err := storage.Open(filepath.Join(home, StorageDir))
	if err != nil {
		return nil, fmt.Errorf("cannot open storage: %w", err)
	}

	db, err := node.Open(filepath.Join(home, NodeDBFile))
	if err != nil {
		return nil, fmt.Errorf("cannot open node database: %w", err)
	}

	cobs, err := cob.Open(filepath.Join(home, CobsDBFile))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open cob cache: %w", err)
	}

	return &Profile{home: home, Config: config, Storage: store, Database: db, Cobs: cobs}, nil
}

// Home returns the home directory
func (p *Profile) Home() string {
	return p.home
}

// ConfigPath returns the path of the configuration file
func (p *Profile) ConfigPath() string {
	return filepath.Join(p.home, ConfigFile)
}

// LoadWebConfig reads the web section of the configuration file again.
// Unlike Load, a missing or empty file is an error.
func (p *Profile) LoadWebConfig() (web.Config, error) {
	config, err := ReadConfig(p.ConfigPath())
	if err != nil {
		return web.Config{}, err
	}
	return config.Web, nil
}

// Alias returns the alias of a node: our own from the configuration,
// the others from the node database
func (p *Profile) Alias(ctx context.Context, nid identity.NodeID) (string, bool) {
	if nid == p.Config.Node.ID && p.Config.Node.Alias != "" {
		return p.Config.Node.Alias, true
	}
	return p.Database.Alias(ctx, nid)
}

// Close closes the databases
func (p *Profile) Close() error {
	return multierr.Combine(p.Database.Close(), p.Cobs.Close())
}
