// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"fmt"
	"path/filepath"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// Run states written by the client.
const (
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateError     = "ERROR"
)

// Relationship types between runs and artifacts.
const (
	RelProducedBy = "produced_by"
	RelConsumes   = "consumes"
)

type RunOptions struct {
	Name    string
	JobType string
	Entity  string
	Config  map[string]string
	Tags    []string
}

type Run struct {
	ID      string
	Key     string
	Project string
	Name    string
	JobType string
	Config  map[string]string
	Tags    []string
	State   string
}

// ManifestEntry is either a reference (Ref set) or an embedded file
// (Digest and Size set).
type ManifestEntry struct {
	Ref    string `json:"ref,omitempty"`
	Digest string `json:"digest,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Artifact is built locally with NewArtifact, filled with references or a
// directory, then logged.
type Artifact struct {
	ID       string
	Key      string
	Project  string
	Name     string
	Type     string
	Aliases  []string
	Metadata map[string]string
	Manifest map[string]ManifestEntry
	// Embedded is true when the files travel inside the tracking service.
	Embedded bool

	localDir string
}

func NewArtifact(name, kind string, metadata map[string]string) *Artifact {
	return &Artifact{
		Name:     name,
		Type:     kind,
		Metadata: metadata,
		Manifest: map[string]ManifestEntry{},
	}
}

// AddReference records uri under key without moving any byte.
func (a *Artifact) AddReference(key, uri string) {
	a.Manifest[key] = ManifestEntry{Ref: uri}
}

// Reference returns the uri recorded under key.
func (a *Artifact) Reference(key string) (string, bool) {
	e, ok := a.Manifest[key]
	if !ok || e.Ref == "" {
		return "", false
	}
	return e.Ref, true
}

// AddDirectory records every file under dir; the bytes are packed and sent
// when the artifact is logged.
func (a *Artifact) AddDirectory(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	files, _, err := utils.ListLocalDir(abs)
	if err != nil {
		return err
	}
	for _, lf := range files {
		digest, err := utils.FileDigest(lf.AbsPath)
		if err != nil {
			return fmt.Errorf("digest error on %s: %w", lf.RelPath, err)
		}
		a.Manifest[lf.RelPath] = ManifestEntry{Digest: digest, Size: lf.Size}
	}
	a.localDir = abs
	a.Embedded = true
	return nil
}

// Ref is the "name:alias" form used to look an artifact up.
func Ref(name, alias string) string {
	return name + ":" + alias
}
