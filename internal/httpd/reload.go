// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/web"
)

// Reloader reloads the web configuration on SIGHUP and whenever the
// configuration file changes
type Reloader struct {
	config *api.WebConfig
	load   func() (web.Config, error)
	path   string
}

// NewReloader creates a new Reloader; path is the configuration file to
// watch, or empty to rely on SIGHUP only
func NewReloader(config *api.WebConfig, load func() (web.Config, error), path string) *Reloader {
	return &Reloader{config: config, load: load, path: path}
}

// Reload reloads the configuration once, keeping the current one on failure
func (r *Reloader) Reload() error {
	if err := r.config.Reload(r.load); err != nil {
		logger.Errorf("%v; keeping the current configuration", err)
		return err
	}
	logger.Info("Web configuration reloaded")
	return nil
}

// Run reloads the configuration on every trigger until ctx is cancelled
func (r *Reloader) Run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var events <-chan fsnotify.Event
	var errs <-chan error
	if r.path != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warningf("Cannot watch %s: %v", r.path, err)
		} else {
			defer watcher.Close()

			// Editors replace files, so watch the directory
			if err := watcher.Add(filepath.Dir(r.path)); err != nil {
				logger.Warningf("Cannot watch %s: %v", r.path, err)
			} else {
				events, errs = watcher.Events, watcher.Errors
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-hup:
			logger.Info("Received SIGHUP, reloading web configuration")
			r.Reload()

		case event := <-events:
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debugf("Configuration file changed: %v", event)
			r.Reload()

		case err := <-errs:
			logger.Warningf("Error watching %s: %v", r.path, err)
		}
	}
}
