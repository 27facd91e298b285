// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package common

// Version is the version of radicle-httpd, set at build time
var Version = "0.1.0"

// Link describes a route reachable from an index
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type"`
}

// IndexResponse lists the routes under a path
type IndexResponse struct {
	Welcome string `json:"welcome,omitempty"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path"`
	Links   []Link `json:"links"`
}

// GetLink returns a link for a GET route
func GetLink(href, rel string) Link {
	return Link{Href: href, Rel: rel, Type: "GET"}
}
