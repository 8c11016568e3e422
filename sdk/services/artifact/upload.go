// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/alias"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/tracking"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// Upload stores the directory req.Source as artifact (type, name, alias)
// and logs it to the active run, starting one if needed.
//
// As a reference, the bytes go to "{type}/{name}/{alias}" in the bucket;
// an existing path is an error unless req.Overwrite, which removes it
// first. Otherwise the files are embedded in the tracking service.
func (s *ArtifactService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Source == "" {
		return nil, invalidf("source directory is required")
	}
	if st, err := os.Stat(req.Source); err != nil || !st.IsDir() {
		return nil, invalidf("source %q does not exist or is not a directory", req.Source)
	}
	localFiles, _, err := utils.ListLocalDir(req.Source)
	if err != nil {
		return nil, err
	}
	if len(localFiles) == 0 {
		return nil, invalidf("source %q contains no files", req.Source)
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

	art := tracking.NewArtifact(req.Name, req.Type, req.Metadata)
	result := &UploadResult{Name: req.Name, Type: req.Type, Alias: aliasValue}

	if req.AsReference {
		uri, files, err := s.uploadReference(ctx, req.Source, bucketPath(req.Type, req.Name, aliasValue), req.Overwrite)
		if err != nil {
			return nil, err
		}
		art.AddReference(ReferenceKey, uri)
		result.URI = uri
		result.Files = files
	} else {
		s.log.Info("uploading artifact as directory", "source", req.Source)
		if err := art.AddDirectory(req.Source); err != nil {
			return nil, fmt.Errorf("failed to add directory: %w", err)
		}
	}

	if _, err := tr.LogArtifact(ctx, run, art, []string{aliasValue}); err != nil {
		return nil, fmt.Errorf("failed to log artifact: %w", err)
	}
	s.log.Info("artifact logged", "name", req.Name, "type", req.Type, "alias", aliasValue)
	return result, nil
}

func (s *ArtifactService) uploadReference(ctx context.Context, src, path string, overwrite bool) (string, []bucket.FileInfo, error) {
	retries := s.conf.Transfer.Retries

	var (
		uri    string
		exists bool
	)
	err := s.withRetry(ctx, "exists", retries, func(int) error {
		st, err := s.bucketStore(ctx)
		if err != nil {
			return err
		}
		uri = st.URI(path)
		exists, err = st.Exists(ctx, path)
		return err
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to check %s: %w", path, err)
	}

	switch {
	case exists && !overwrite:
		return "", nil, fmt.Errorf("%w: %s, overwrite is not allowed", ErrArtifactExists, uri)
	case exists:
		s.log.Warn("artifact exists, it will be overwritten", "uri", uri)
		err := s.withRetry(ctx, "remove", retries, func(int) error {
			st, err := s.bucketStore(ctx)
			if err != nil {
				return err
			}
			return st.Remove(ctx, path, true)
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to remove %s: %w", uri, err)
		}
	}

	s.log.Info("uploading artifact", "source", src, "destination", uri)
	var files []bucket.FileInfo
	err = s.withRetry(ctx, "upload", retries, func(int) error {
		st, err := s.bucketStore(ctx)
		if err != nil {
			return err
		}
		files, err = st.UploadDir(ctx, src, path)
		return err
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to upload %s: %w", uri, err)
	}
	s.log.Info("artifact uploaded", "uri", uri, "files", len(files))
	return uri, files, nil
}
