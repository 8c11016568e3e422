// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

/* ------------ S3 directory (with continuation token) ------------ */

// DownloadS3Dir copies every object under s3://bucket/prefix into localPath,
// keeping the layout relative to prefix.
func DownloadS3Dir(ctx context.Context, client *config.S3Client, bucket, prefix, localPath string, opts TransferOptions) ([]TransferFile, error) {
	log := opts.logger()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local directory: %w", err)
	}

	// totals are only needed for the progress line
	var gp *globalProgress
	if !opts.Verbose {
		var totalBytes int64
		all, err := client.ListFilesAll(ctx, bucket, prefix)
		if err != nil {
			log.Warn("listing failed, proceeding without totals", "error", err)
		} else {
			for _, f := range all {
				totalBytes += f.Size
			}
		}
		gp = newGlobalProgress("downloaded", totalBytes)
	}

	log.Info("preparing download",
		"source", fmt.Sprintf("s3://%s/%s", bucket, prefix),
		"destination", localPath,
		"resume", opts.Resume)

	var files []TransferFile
	var idx int
	err := client.WalkPrefix(ctx, bucket, prefix, 1000, func(obj s3types.Object) error {
		idx++
		key := aws.ToString(obj.Key)
		rel := strings.TrimPrefix(key, prefix)
		target, err := SafeJoin(localPath, rel)
		if err != nil {
			return err
		}
		size := aws.ToInt64(obj.Size)
		record := TransferFile{
			Path: rel,
			Name: filepath.Base(target),
			Size: size,
		}
		if obj.LastModified != nil {
			record.LastModified = obj.LastModified.UTC().Format(time.RFC1123)
		}

		if opts.Resume && sameSizeOnDisk(target, size) {
			log.Debug("skipping file already downloaded", "file", rel)
			gp.add(size)
			files = append(files, record)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create local directory: %w", err)
		}

		var hook *config.ProgressHook
		if opts.Verbose {
			log.Info("downloading file", "index", idx, "file", rel)
		} else {
			feed := gp.fileHook()
			hook = &config.ProgressHook{
				OnProgress: func(_ string, written, _ int64) { feed(written, false) },
				OnDone:     func(_ string, total int64, _ time.Duration) { feed(total, true) },
			}
		}
		if err := client.DownloadFileWithProgress(ctx, bucket, key, target, hook); err != nil {
			return fmt.Errorf("failed to download %s: %w", rel, err)
		}
		files = append(files, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	gp.done()
	return files, nil
}
