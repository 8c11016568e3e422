// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import "time"

// Config passed to the SDK. Viper/INI handling lives in utils, here only plain values.
type Config struct {
	Core     CoreConfig
	S3       S3Config
	Bucket   BucketConfig
	Job      JobConfig
	Transfer TransferConfig
}

type CoreConfig struct {
	BaseURL           string
	APIVersion        string
	AccessToken       string
	BasicAuthUsername string
	BasicAuthPassword string

	// Project scoping every tracking resource; also the default bucket name.
	Project string
	Entity  string

	// Retries performed by the HTTP transport on 5xx and connection errors.
	RetryMax int
}

type S3Config struct {
	AccessKey   string
	SecretKey   string
	AccessToken string
	Region      string
	EndpointURL string
}

// BucketConfig selects where artifacts are materialized.
// URL wins over Name: "s3://name[/prefix]" or "file:///abs/dir".
type BucketConfig struct {
	Name string
	URL  string
}

// JobConfig describes the platform job the tool runs in, if any.
// A non-empty ID turns into run tags.
type JobConfig struct {
	ID    string
	Name  string
	Owner string
	Tags  []string
}

type TransferConfig struct {
	Retries     int
	BackoffUnit time.Duration
}

const (
	DefaultAPIVersion  = "v1"
	DefaultRetries     = 5
	DefaultBackoffUnit = time.Second
)

// StagingPrefix names the temporary files a transfer writes before
// renaming them into place. Stores never list files carrying it.
const StagingPrefix = ".bucketref-staging-"


// BucketURL returns the bucket root URL, falling back to the project name.
func (c Config) BucketURL() string {
	if c.Bucket.URL != "" {
		return c.Bucket.URL
	}
	name := c.Bucket.Name
	if name == "" {
		name = c.Core.Project
	}
	if name == "" {
		return ""
	}
	return "s3://" + name
}
