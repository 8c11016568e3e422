// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/alias"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/tracking"
)

// Link registers a reference artifact pointing at a directory already in
// a bucket, without moving any byte. BucketPath is either relative to the
// configured bucket or an absolute URI.
func (s *ArtifactService) Link(ctx context.Context, req LinkRequest) (*UploadResult, error) {
	if strings.Trim(req.BucketPath, "/") == "" {
		return nil, invalidf("bucket path is required")
	}

	run, tr, err := s.activeRun(ctx)
	if err != nil {
		return nil, err
	}
	aliasValue, err := alias.Resolve(req.Alias, run.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := validateIdentity(req.Type, req.Name, aliasValue); err != nil {
		return nil, err
	}

	var uri string
	var isDir bool
	err = s.withRetry(ctx, "link", s.conf.Transfer.Retries, func(int) error {
		st, p, release, err := s.linkTarget(ctx, req.BucketPath)
		if err != nil {
			return err
		}
		defer release()
		uri = st.URI(p)
		isDir, err = st.IsDir(ctx, p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", req.BucketPath, err)
	}
	if !isDir {
		return nil, invalidf("bucket path %s does not exist or not a directory", uri)
	}

	art := tracking.NewArtifact(req.Name, req.Type, req.Metadata)
	art.AddReference(ReferenceKey, uri)
	if _, err := tr.LogArtifact(ctx, run, art, []string{aliasValue}); err != nil {
		return nil, fmt.Errorf("failed to log artifact: %w", err)
	}
	s.log.Info("artifact linked", "name", req.Name, "type", req.Type, "alias", aliasValue, "uri", uri)
	return &UploadResult{Name: req.Name, Type: req.Type, Alias: aliasValue, URI: uri}, nil
}

func (s *ArtifactService) linkTarget(ctx context.Context, bucketPath string) (bucket.Store, string, func(), error) {
	if strings.Contains(bucketPath, "://") {
		return s.storeFor(ctx, bucketPath)
	}
	st, err := s.bucketStore(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	return st, bucketPath, func() {}, nil
}
