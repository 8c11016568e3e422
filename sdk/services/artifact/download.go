// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/tracking"
)

// Download fetches artifact (type, name, alias) into req.Destination, or
// a fresh temporary directory, and returns the directory used.
//
// Transient failures are retried with backoff, req.Retries times or the
// configured transfer retries when nil; retries after the first resume,
// skipping files already complete on disk.
func (s *ArtifactService) Download(ctx context.Context, req DownloadRequest) (dir string, err error) {
	retries := s.conf.Transfer.Retries
	if req.Retries != nil {
		if *req.Retries < 0 {
			return "", invalidf("retries must be >= 0, got %d", *req.Retries)
		}
		retries = *req.Retries
	}
	if err := validateIdentity(req.Type, req.Name, req.Alias); err != nil {
		return "", err
	}

	run, tr, err := s.activeRun(ctx)
	if err != nil {
		return "", err
	}
	art, err := tr.UseArtifact(ctx, run, tracking.Ref(req.Name, req.Alias), req.Type)
	if err != nil {
		return "", err
	}

	dest := req.Destination
	if dest == "" {
		dest, err = os.MkdirTemp("", "bucketref-")
		if err != nil {
			return "", fmt.Errorf("failed to create destination: %w", err)
		}
		defer func() {
			if err != nil {
				_ = os.RemoveAll(dest)
			}
		}()
	}

	uri, ok := art.Reference(ReferenceKey)
	if !ok {
		if art.Embedded {
			s.log.Info("downloading embedded artifact", "artifact", art.Key, "destination", dest)
			return tr.Download(ctx, art, dest)
		}
		uri, err = s.legacyURI(ctx, req)
		if err != nil {
			return "", err
		}
	}

	err = s.withRetry(ctx, "download", retries, func(attempt int) error {
		st, rel, release, err := s.storeFor(ctx, uri)
		if err != nil {
			return err
		}
		defer release()
		s.log.Info("downloading artifact", "source", uri, "destination", dest)
		_, err = st.DownloadDir(ctx, rel, dest, attempt > 0)
		return err
	})
	if err != nil {
		return "", err
	}
	s.log.Info("artifact downloaded", "destination", dest)
	return dest, nil
}

// legacyURI rebuilds the bucket URI of a record without reference entry.
func (s *ArtifactService) legacyURI(ctx context.Context, req DownloadRequest) (string, error) {
	path := bucketPath(req.Type, req.Name, req.Alias)
	st, err := s.bucketStore(ctx)
	if err != nil {
		return "", fmt.Errorf("artifact %s has no reference and the bucket is unavailable: %w", path, err)
	}
	uri := st.URI(path)
	s.log.Warn("artifact reference not found, trying bucket path", "path", path, "uri", uri)
	return uri, nil
}
