// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// PayloadID names a payload of the identity document
type PayloadID string

const (
	// PayloadProject is the project payload
	PayloadProject PayloadID = "xyz.radicle.project"

	// PayloadCanonicalRefs holds the canonical reference rules
	PayloadCanonicalRefs PayloadID = "xyz.radicle.crefs"
)

// ErrPayloadNotFound is returned when the document lacks a payload
var ErrPayloadNotFound = errors.New("payload not found")

// Visibility of a repository
type Visibility struct {
	Type  string `json:"type"`
	Allow []DID  `json:"allow,omitempty"`
}

const (
	visibilityPublic  = "public"
	visibilityPrivate = "private"
)

// Public returns a public visibility
func Public() Visibility {
	return Visibility{Type: visibilityPublic}
}

// Private returns a private visibility allowing the given delegates
func Private(allow ...DID) Visibility {
	return Visibility{Type: visibilityPrivate, Allow: allow}
}

// IsPrivate returns whether the repository is private
func (v Visibility) IsPrivate() bool {
	return v.Type == visibilityPrivate
}

// Doc is the identity document of a repository
type Doc struct {
	Payload    map[PayloadID]json.RawMessage `json:"payload"`
	Delegates  []DID                         `json:"delegates"`
	Threshold  int                           `json:"threshold"`
	Visibility Visibility                    `json:"visibility"`
}

// Project is the project payload
type Project struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"defaultBranch"`
}

type canonicalRefs struct {
	Rules map[string]json.RawMessage `json:"rules"`
}

// ParseDoc decodes an identity document
func ParseDoc(data []byte) (*Doc, error) {
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode identity document: %w", err)
	}

	if doc.Visibility.Type == "" {
		doc.Visibility = Public()
	}
	if doc.Visibility.Type != visibilityPublic && doc.Visibility.Type != visibilityPrivate {
		return nil, fmt.Errorf("unknown visibility %q", doc.Visibility.Type)
	}
	if doc.Threshold < 1 {
		return nil, fmt.Errorf("invalid threshold %d", doc.Threshold)
	}

	return &doc, nil
}

// Project decodes the project payload
func (d *Doc) Project() (*Project, error) {
	raw, ok := d.Payload[PayloadProject]
	if !ok {
		return nil, ErrPayloadNotFound
	}

	var project Project
	if err := json.Unmarshal(raw, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project payload: %w", err)
	}
	return &project, nil
}

// CanonicalRefs returns the sorted rule patterns of the canonical
// references payload, or ErrPayloadNotFound when the repository doesn't
// declare any
func (d *Doc) CanonicalRefs() ([]string, error) {
	raw, ok := d.Payload[PayloadCanonicalRefs]
	if !ok {
		return nil, ErrPayloadNotFound
	}

	var crefs canonicalRefs
	if err := json.Unmarshal(raw, &crefs); err != nil {
		return nil, fmt.Errorf("failed to decode canonical refs payload: %w", err)
	}

	patterns := make([]string, 0, len(crefs.Rules))
	for pattern := range crefs.Rules {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	return patterns, nil
}

// PayloadIDs returns the payload identifiers in order
func (d *Doc) PayloadIDs() []PayloadID {
	ids := make([]PayloadID, 0, len(d.Payload))
	for id := range d.Payload {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
