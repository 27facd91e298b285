// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpd serves the HTTP API of a node over TCP or a unix socket
package httpd

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/git"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/profile"
	"github.com/lirios/radicle-httpd/internal/raw"
)

// DefaultCacheSize is the default number of cached tree listings
const DefaultCacheSize = 100

// Options configure the server
type Options struct {
	Listen    ListenAddress
	Aliases   []git.Alias
	CacheSize int
}

// Run serves the profile until ctx is cancelled
func Run(ctx context.Context, options Options, p *profile.Profile) error {
	config := api.NewWebConfig(p.Config.Web)

	apiContext, err := api.FromProfile(p, config, options.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create API context: %w", err)
	}

	aliases, err := git.NewAliases(options.Aliases...)
	if err != nil {
		return err
	}
	aliases.Walk(func(alias git.Alias) error {
		logger.Infof("Serving %s as %s", alias.RID, alias.Name)
		return nil
	})

	gitHandler, err := git.NewHandler(git.FromStorage(p.Storage), aliases)
	if err != nil {
		return err
	}

	server := NewServer(options.Listen, Router(Handlers{
		API: apiContext,
		Raw: raw.FromStorage(p.Storage),
		Git: gitHandler,
	}))

	l, err := server.Listen()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, l)
	})
	g.Go(func() error {
		return NewReloader(config, p.LoadWebConfig, p.ConfigPath()).Run(gctx)
	})

	return g.Wait()
}
