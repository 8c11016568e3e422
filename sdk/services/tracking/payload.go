// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

const payloadContentType = "application/zstd"

// Pack writes the regular files under dir to w as a zstd compressed tar.
func Pack(w io.Writer, dir string) error {
	files, _, err := utils.ListLocalDir(dir)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	for _, lf := range files {
		if err := addToTar(tw, lf); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("tar close: %w", err)
	}
	return zw.Close()
}

func addToTar(tw *tar.Writer, lf utils.LocalFile) error {
	f, err := os.Open(lf.AbsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     lf.RelPath,
		Mode:     0o644,
		Size:     lf.Size,
		ModTime:  lf.ModTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", lf.RelPath, err)
	}
	if _, err := io.CopyN(tw, f, lf.Size); err != nil {
		return fmt.Errorf("tar write %s: %w", lf.RelPath, err)
	}
	return nil
}

// Unpack extracts a payload produced by Pack into dest. Entries escaping
// dest are rejected.
func Unpack(r io.Reader, dest string) ([]utils.TransferFile, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var files []utils.TransferFile
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tar read: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target, err := utils.SafeJoin(dest, hdr.Name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		out, err := os.Create(target)
		if err != nil {
			return nil, err
		}
		n, err := io.Copy(out, tr)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		files = append(files, utils.TransferFile{
			Path: hdr.Name,
			Name: filepath.Base(target),
			Size: n,
		})
	}
}

func (s *TrackingService) payloadURL(id string) string {
	return s.http.BuildURL(s.project, artifactsResource, id, nil) + "/payload"
}

func (s *TrackingService) uploadPayload(ctx context.Context, id, dir string) error {
	if dir == "" {
		return errors.New("embedded artifact has no directory")
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Pack(pw, dir))
	}()

	body, status, err := s.http.Stream(ctx, "PUT", s.payloadURL(id), payloadContentType, pr)
	_ = pr.Close()
	if err != nil {
		return fmt.Errorf("payload upload failed (status %d): %w", status, err)
	}
	_ = body.Close()
	return nil
}

// Download extracts the embedded payload of art into dest.
func (s *TrackingService) Download(ctx context.Context, art *Artifact, dest string) (string, error) {
	if art == nil || !art.Embedded {
		return "", errors.New("artifact has no embedded payload")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}
	body, status, err := s.http.Stream(ctx, "GET", s.payloadURL(art.ID), "", nil)
	if err != nil {
		return "", fmt.Errorf("payload download failed (status %d): %w", status, err)
	}
	defer body.Close()

	files, err := Unpack(body, dest)
	if err != nil {
		return "", err
	}
	s.log.Debug("payload extracted", "artifact", art.Key, "files", len(files), "destination", dest)
	return dest, nil
}
