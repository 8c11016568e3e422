// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import "github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"

// ReferenceKey is the manifest entry holding the bucket URI of a
// reference artifact.
const ReferenceKey = "platform_blob"

type RunRequest struct {
	Name    string
	JobType string
	Config  map[string]string
	// Tags are added to the job tags derived from the config.
	Tags []string
}

type UploadRequest struct {
	Source string
	Type   string
	Name   string
	// Alias: nil for a fresh UUID, "!run-config-hash" for the config digest.
	Alias    *string
	Metadata map[string]string
	// AsReference uploads to the bucket and records only the URI;
	// otherwise the files are embedded in the tracking service.
	AsReference bool
	Overwrite   bool
}

type UploadResult struct {
	Name  string            `json:"name"            yaml:"name"`
	Type  string            `json:"type"            yaml:"type"`
	Alias string            `json:"alias"           yaml:"alias"`
	URI   string            `json:"uri,omitempty"   yaml:"uri,omitempty"`
	Files []bucket.FileInfo `json:"files,omitempty" yaml:"files,omitempty"`
}

type DownloadRequest struct {
	Type  string
	Name  string
	Alias string
	// Destination defaults to a fresh temporary directory.
	Destination string
	// Retries after the first attempt; the configured transfer retries when nil.
	Retries *int
}

type LinkRequest struct {
	BucketPath string
	Type       string
	Name       string
	Alias      *string
	Metadata   map[string]string
}
