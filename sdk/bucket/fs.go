// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

// FSStore keeps artifacts in a directory tree of an afero filesystem,
// addressed by file:// URIs.
type FSStore struct {
	fs   afero.Fs
	root string
	opts Options
}

func NewFSStore(root string, opts ...Option) *FSStore {
	o := buildOptions(opts)
	return &FSStore{
		fs:   o.Fs,
		root: filepath.Clean(filepath.FromSlash(root)),
		opts: o,
	}
}

func (s *FSStore) full(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(cleanPath(p)))
}

func (s *FSStore) Root() string {
	return "file://" + filepath.ToSlash(s.root)
}

func (s *FSStore) URI(p string) string {
	return "file://" + strings.TrimSuffix(filepath.ToSlash(s.full(p)), "/") + "/"
}

func (s *FSStore) Rel(uri string) (string, bool) {
	pp, err := utils.ParsePath(uri)
	if err != nil || pp.Scheme != "file" {
		return "", false
	}
	rel, err := filepath.Rel(s.root, filepath.Clean(filepath.FromSlash(pp.Path)))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return cleanPath(filepath.ToSlash(rel)), true
}

func (s *FSStore) Exists(_ context.Context, p string) (bool, error) {
	return afero.Exists(s.fs, s.full(p))
}

func (s *FSStore) IsDir(_ context.Context, p string) (bool, error) {
	ok, err := afero.IsDir(s.fs, s.full(p))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return ok, err
}

// UploadDir copies the local directory src into the store under p.
// Each file is written to a staging sibling then renamed; source files
// named like staging files are refused.
func (s *FSStore) UploadDir(ctx context.Context, src, p string) ([]FileInfo, error) {
	log := s.opts.Logger
	localFiles, totalBytes, err := utils.ListLocalDir(src)
	if err != nil {
		return nil, err
	}
	log.Info("preparing upload",
		"source", src,
		"destination", s.URI(p),
		"files", len(localFiles),
		"size", utils.HumanBytes(totalBytes))

	for _, lf := range localFiles {
		if isStaging(lf.RelPath) {
			return nil, fmt.Errorf("file name %s is reserved for staging files", lf.RelPath)
		}
	}

	base := s.full(p)
	files := make([]FileInfo, 0, len(localFiles))
	for _, lf := range localFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		described, err := utils.DescribeLocalFile(lf)
		if err != nil {
			return nil, err
		}
		target := filepath.Join(base, filepath.FromSlash(lf.RelPath))
		if s.opts.Verbose {
			log.Info("uploading file", "file", lf.RelPath, "target", target)
		}
		if err := s.copyIn(lf.AbsPath, target); err != nil {
			return nil, fmt.Errorf("upload error (%s): %w", lf.RelPath, err)
		}
		files = append(files, described)
	}
	return files, nil
}

func (s *FSStore) copyIn(localPath, target string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := afero.TempFile(s.fs, filepath.Dir(target), config.StagingPrefix+"*")
	if err != nil {
		return err
	}
	part := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = s.fs.Remove(part)
		return err
	}
	if err := out.Close(); err != nil {
		_ = s.fs.Remove(part)
		return err
	}
	return s.fs.Rename(part, target)
}

// DownloadDir copies everything under p into the local directory dst.
func (s *FSStore) DownloadDir(ctx context.Context, p, dst string, resume bool) ([]FileInfo, error) {
	log := s.opts.Logger
	base := s.full(p)
	if ok, err := afero.IsDir(s.fs, base); err != nil || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.URI(p))
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local directory: %w", err)
	}
	log.Info("preparing download", "source", s.URI(p), "destination", dst, "resume", resume)

	var files []FileInfo
	err := afero.Walk(s.fs, base, func(name string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() || isStaging(name) {
			return nil
		}
		rel, err := filepath.Rel(base, name)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		target, err := utils.SafeJoin(dst, rel)
		if err != nil {
			return err
		}
		record := FileInfo{
			Path:         rel,
			Name:         filepath.Base(target),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC().Format(http.TimeFormat),
		}
		if resume {
			if st, err := os.Stat(target); err == nil && st.Mode().IsRegular() && st.Size() == info.Size() {
				log.Debug("skipping file already downloaded", "file", rel)
				files = append(files, record)
				return nil
			}
		}
		if s.opts.Verbose {
			log.Info("downloading file", "file", rel)
		}
		digest, err := s.copyOut(name, target)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", rel, err)
		}
		record.Digest = digest
		files = append(files, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.URI(p))
	}
	return files, nil
}

func (s *FSStore) copyOut(name, target string) (string, error) {
	in, err := s.fs.Open(name)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(filepath.Dir(target), config.StagingPrefix+"*")
	if err != nil {
		return "", err
	}
	part := out.Name()
	h := blake3.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		_ = out.Close()
		_ = os.Remove(part)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return "", err
	}
	if err := os.Rename(part, target); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *FSStore) Remove(_ context.Context, p string, recursive bool) error {
	if cleanPath(p) == "" {
		return errors.New("refusing to remove the bucket root")
	}
	if recursive {
		return s.fs.RemoveAll(s.full(p))
	}
	return s.fs.Remove(s.full(p))
}

// isStaging reports whether the base name of p is a staging file name.
func isStaging(p string) bool {
	return strings.HasPrefix(filepath.Base(filepath.FromSlash(p)), config.StagingPrefix)
}

func (s *FSStore) Close() error {
	return nil
}
