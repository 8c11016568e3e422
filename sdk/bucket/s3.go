// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// S3Store keeps artifacts under s3://bucket/prefix.
type S3Store struct {
	client *config.S3Client
	bucket string
	prefix string
	opts   Options
}

func NewS3Store(ctx context.Context, bucketName, prefix string, s3cfg config.S3Config, opts ...Option) (*S3Store, error) {
	client, err := config.NewS3Client(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return NewS3StoreWithClient(client, bucketName, prefix, opts...), nil
}

func NewS3StoreWithClient(client *config.S3Client, bucketName, prefix string, opts ...Option) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucketName,
		prefix: cleanPath(prefix),
		opts:   buildOptions(opts),
	}
}

func (s *S3Store) key(p string) string {
	return joinPath(s.prefix, p)
}

func (s *S3Store) Root() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Store) URI(p string) string {
	k := s.key(p)
	if k == "" {
		return "s3://" + s.bucket + "/"
	}
	return "s3://" + s.bucket + "/" + k + "/"
}

func (s *S3Store) Rel(uri string) (string, bool) {
	pp, err := utils.ParsePath(uri)
	if err != nil || pp.Scheme != "s3" || pp.Host != s.bucket {
		return "", false
	}
	k := cleanPath(pp.Path)
	if s.prefix == "" {
		return k, true
	}
	if k == s.prefix {
		return "", true
	}
	if rel, ok := strings.CutPrefix(k, s.prefix+"/"); ok {
		return rel, true
	}
	return "", false
}

// Exists holds for a single object at the key or any object below it.
func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	k := s.key(p)
	if k != "" {
		ok, err := s.client.ObjectExists(ctx, s.bucket, k)
		if err != nil {
			return false, classify(err)
		}
		if ok {
			return true, nil
		}
	}
	return s.IsDir(ctx, p)
}

// IsDir holds when at least one object lives under the path.
func (s *S3Store) IsDir(ctx context.Context, p string) (bool, error) {
	prefix := s.key(p)
	if prefix != "" {
		prefix += "/"
	}
	ok, err := s.client.PrefixExists(ctx, s.bucket, prefix)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (s *S3Store) UploadDir(ctx context.Context, src, p string) ([]FileInfo, error) {
	files, err := utils.UploadS3Dir(ctx, s.client, s.bucket, s.key(p), src, s.opts.transfer(false))
	if err != nil {
		return nil, classify(err)
	}
	return files, nil
}

func (s *S3Store) DownloadDir(ctx context.Context, p, dst string, resume bool) ([]FileInfo, error) {
	files, err := utils.DownloadS3Dir(ctx, s.client, s.bucket, s.key(p), dst, s.opts.transfer(resume))
	if err != nil {
		return nil, classify(err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.URI(p))
	}
	return files, nil
}

func (s *S3Store) Remove(ctx context.Context, p string, recursive bool) error {
	k := s.key(p)
	if k == "" {
		return errors.New("refusing to remove the bucket root")
	}
	if !recursive {
		if err := s.client.DeleteObject(ctx, s.bucket, k); err != nil {
			return classify(err)
		}
		return nil
	}
	n, err := s.client.DeletePrefix(ctx, s.bucket, k+"/")
	if err != nil {
		return classify(err)
	}
	// an object stored at the key itself also makes the path exist
	if err := s.client.DeleteObject(ctx, s.bucket, k); err != nil {
		return classify(err)
	}
	s.opts.Logger.Debug("removed objects", "uri", s.URI(p), "count", n)
	return nil
}

func (s *S3Store) Close() error {
	return nil
}
