// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package web holds the settings of the web front-end served by the node
package web

import "github.com/lirios/radicle-httpd/internal/identity"

// Pinned lists what the front-end shows first
type Pinned struct {
	Repositories []identity.RepoID `yaml:"repositories" json:"repositories"`
}

// Config represents the web settings
type Config struct {
	Pinned      Pinned `yaml:"pinned" json:"pinned"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	AvatarURL   string `yaml:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	BannerURL   string `yaml:"bannerUrl,omitempty" json:"bannerUrl,omitempty"`
}

// Clone returns a copy that shares no memory with c
func (c Config) Clone() Config {
	clone := c
	clone.Pinned.Repositories = append([]identity.RepoID{}, c.Pinned.Repositories...)
	return clone
}

