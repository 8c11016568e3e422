// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package bucket is the object storage side of artifact materialization.
//
// A Store is rooted at a bucket URL ("s3://bucket/prefix" or
// "file:///abs/dir") and addresses directories by slash separated paths
// relative to that root.
package bucket

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// FileInfo describes one transferred file.
type FileInfo = utils.TransferFile

type Store interface {
	// Root is the bucket URL the store was opened on.
	Root() string
	// URI is the absolute URI of a directory path, with a trailing slash.
	URI(path string) string
	// Rel maps an absolute URI back to a path of this store.
	Rel(uri string) (string, bool)

	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	UploadDir(ctx context.Context, src, path string) ([]FileInfo, error)
	DownloadDir(ctx context.Context, path, dst string, resume bool) ([]FileInfo, error)
	Remove(ctx context.Context, path string, recursive bool) error
	Close() error
}

type Options struct {
	Logger  logging.Logger
	Verbose bool
	// Fs backs file:// stores; the OS filesystem when nil.
	Fs afero.Fs
}

type Option func(*Options)

func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithVerbose logs every file instead of rendering a progress line.
func WithVerbose(v bool) Option {
	return func(o *Options) { o.Verbose = v }
}

func WithFs(fs afero.Fs) Option {
	return func(o *Options) { o.Fs = fs }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	return o
}

func (o Options) transfer(resume bool) utils.TransferOptions {
	return utils.TransferOptions{Logger: o.Logger, Verbose: o.Verbose, Resume: resume}
}

// Open returns the store for a bucket URL, picking the backend by scheme.
func Open(ctx context.Context, rawURL string, s3cfg config.S3Config, opts ...Option) (Store, error) {
	pp, err := utils.ParsePath(rawURL)
	if err != nil {
		return nil, err
	}
	switch pp.Scheme {
	case "s3":
		if pp.Host == "" {
			return nil, fmt.Errorf("invalid bucket url %q: missing bucket name", rawURL)
		}
		return NewS3Store(ctx, pp.Host, cleanPath(pp.Path), s3cfg, opts...)
	case "file":
		if pp.Host != "" && pp.Host != "localhost" {
			return nil, fmt.Errorf("invalid bucket url %q: file urls must be absolute", rawURL)
		}
		if pp.Path == "" {
			return nil, fmt.Errorf("invalid bucket url %q: missing path", rawURL)
		}
		return NewFSStore(pp.Path, opts...), nil
	default:
		return nil, fmt.Errorf("%w %q in %q", ErrUnsupportedScheme, pp.Scheme, rawURL)
	}
}

// cleanPath normalizes a store path: slash separated, no leading or
// trailing slash, "" for the root.
func cleanPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

func joinPath(base, p string) string {
	return cleanPath(path.Join(base, cleanPath(p)))
}
