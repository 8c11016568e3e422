// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
)

// TransferFile describes one file moved to or from a bucket.
// Path is relative to the artifact root, always with forward slashes.
type TransferFile struct {
	Path         string `json:"path"                    yaml:"path"`
	Name         string `json:"name"                    yaml:"name"`
	ContentType  string `json:"content_type,omitempty"  yaml:"content_type,omitempty"`
	LastModified string `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Size         int64  `json:"size"                    yaml:"size"`
	Digest       string `json:"digest,omitempty"        yaml:"digest,omitempty"`
}

type TransferOptions struct {
	Logger  logging.Logger
	Verbose bool
	// Resume skips local files already downloaded with the expected size.
	Resume bool
}

func (o TransferOptions) logger() logging.Logger {
	return logging.OrNop(o.Logger)
}

// LocalFile is an entry of a local directory listing.
type LocalFile struct {
	AbsPath string
	RelPath string // slash separated
	Size    int64
	ModTime time.Time
}

// ListLocalDir returns the regular files under root in lexical order.
func ListLocalDir(root string) ([]LocalFile, int64, error) {
	var files []LocalFile
	var totalBytes int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat error on %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path error: %w", err)
		}
		files = append(files, LocalFile{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		totalBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to enumerate local directory: %w", err)
	}
	return files, totalBytes, nil
}

// SafeJoin joins a slash separated relative key under base, refusing keys
// that would escape it.
func SafeJoin(base, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("refusing to write outside destination: %q", rel)
	}
	return filepath.Join(base, clean), nil
}

// FileDigest returns the hex BLAKE3 digest of a local file.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReaderDigest(f)
}

func ReaderDigest(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DescribeLocalFile builds the TransferFile record of an uploaded local file.
func DescribeLocalFile(lf LocalFile) (TransferFile, error) {
	f, err := os.Open(lf.AbsPath)
	if err != nil {
		return TransferFile{}, fmt.Errorf("open file error: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	contentType := http.DetectContentType(header[:n])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return TransferFile{}, fmt.Errorf("seek error: %w", err)
	}
	digest, err := ReaderDigest(f)
	if err != nil {
		return TransferFile{}, fmt.Errorf("digest error on %s: %w", lf.RelPath, err)
	}
	return TransferFile{
		Path:         lf.RelPath,
		Name:         filepath.Base(lf.AbsPath),
		ContentType:  contentType,
		LastModified: lf.ModTime.UTC().Format(http.TimeFormat),
		Size:         lf.Size,
		Digest:       digest,
	}, nil
}

// sameSizeOnDisk is the resume check: a previous attempt left this file complete.
func sameSizeOnDisk(path string, size int64) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() == size
}
