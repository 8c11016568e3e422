// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

/* ------------ DIRECTORY ------------ */

// UploadS3Dir copies every regular file under localPath to
// s3://bucket/prefix/<relative path>. The first failing file aborts the
// whole upload.
func UploadS3Dir(ctx context.Context, client *config.S3Client, bucket, prefix, localPath string, opts TransferOptions) ([]TransferFile, error) {
	log := opts.logger()

	localFiles, totalBytes, err := ListLocalDir(localPath)
	if err != nil {
		return nil, err
	}

	log.Info("preparing upload",
		"source", localPath,
		"destination", fmt.Sprintf("s3://%s/%s", bucket, prefix),
		"files", len(localFiles),
		"size", HumanBytes(totalBytes))

	var gp *globalProgress
	if !opts.Verbose {
		gp = newGlobalProgress("uploaded", totalBytes)
	}

	files := make([]TransferFile, 0, len(localFiles))
	for i, lf := range localFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		described, err := DescribeLocalFile(lf)
		if err != nil {
			return nil, err
		}
		key := path.Join(prefix, lf.RelPath)

		file, err := os.Open(lf.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("open file error: %w", err)
		}

		var hook *config.ProgressHook
		if opts.Verbose {
			log.Info("uploading file", "index", i+1, "total", len(localFiles), "file", lf.RelPath, "key", key)
			hook = &config.ProgressHook{
				OnDone: func(k string, total int64, took time.Duration) {
					log.Debug("uploaded file", "key", k, "size", HumanBytes(total), "took", took.Truncate(100*time.Millisecond))
				},
			}
		} else {
			feed := gp.fileHook()
			hook = &config.ProgressHook{
				OnProgress: func(_ string, written, _ int64) { feed(written, false) },
				OnDone:     func(_ string, total int64, _ time.Duration) { feed(total, true) },
			}
		}

		_, upErr := client.UploadFileWithProgress(ctx, bucket, key, file, hook)
		_ = file.Close()
		if upErr != nil {
			return nil, fmt.Errorf("upload error (%s): %w", lf.RelPath, upErr)
		}
		files = append(files, described)
	}

	gp.done()
	return files, nil
}
