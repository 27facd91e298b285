// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lirios/radicle-httpd/internal/common"
	"github.com/lirios/radicle-httpd/internal/git"
	"github.com/lirios/radicle-httpd/internal/httpd"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/profile"
	"github.com/lirios/radicle-httpd/internal/storage"
)

// Root command
func rootCmd() *cobra.Command {
	var (
		listen    string
		aliases   []string
		cacheSize int
		home      string
		verbose   bool
	)

	var cmd = &cobra.Command{
		Use:     "radicle-httpd",
		Short:   "Serve the repositories of a Radicle node over HTTP",
		Long:    "Serves a JSON API, raw files and git clones of the repositories stored by a Radicle node.",
		Version: common.Version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			// Toggle debug output
			logger.SetVerbose(verbose)
			defer logger.Sync()

			// Validate arguments
			address, err := httpd.ParseListenAddress(listen)
			if err != nil {
				logger.Fatalf("Fatal: %v", err)
				return
			}
			options := httpd.Options{Listen: address, CacheSize: cacheSize}
			for _, s := range aliases {
				alias, err := git.ParseAlias(s)
				if err != nil {
					logger.Fatalf("Fatal: %v", err)
					return
				}
				options.Aliases = append(options.Aliases, alias)
			}
			if cacheSize < 0 {
				logger.Fatal("Fatal: cache size must not be negative")
				return
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Check that git is available
			version, err := storage.Version(ctx)
			if err != nil {
				logger.Fatalf("Fatal: %v", err)
				return
			}
			logger.Debugf("Using %s", version)

			// Open profile
			p, err := profile.Load(home)
			if err != nil {
				logger.Fatalf("Fatal: %v", err)
				return
			}
			defer p.Close()

			if err := httpd.Run(ctx, options, p); err != nil {
				p.Close()
				logger.Fatalf("Fatal: %v", err)
				return
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", httpd.DefaultListenAddress, "address to listen on, host:port or a unix socket path")
	cmd.Flags().StringArrayVarP(&aliases, "alias", "a", []string{}, "serve a repository under a short name, as <name>=<rid>")
	cmd.Flags().IntVar(&cacheSize, "cache", httpd.DefaultCacheSize, "number of tree listings to cache, 0 to disable")
	cmd.Flags().StringVar(&home, "home", profile.DefaultHome(), "path to the Radicle home")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "more messages while serving")

	return cmd
}

// Execute executes the root command.
func Execute() error {
	return rootCmd().Execute()
}
