// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// HashTree digests a directory: every entry's relative slash path in
// sorted order, followed by the file bytes for regular files. Two trees
// hash equal only when names, layout and content all match.
func HashTree(t testing.TB, dir string) string {
	t.Helper()
	var entries []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("hash tree %s: %v", dir, err)
	}
	sort.Strings(entries)

	h := blake3.New()
	for _, rel := range entries {
		_, _ = h.Write([]byte(rel))
		p := filepath.Join(dir, filepath.FromSlash(rel))
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("hash tree %s: %v", p, err)
		}
		if st.IsDir() {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("hash tree %s: %v", p, err)
		}
		_, err = io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			t.Fatalf("hash tree %s: %v", p, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RandomArtifactDir creates a small tree with random content:
// somedata.csv and dir/deep_data.csv.
func RandomArtifactDir(t testing.TB) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	for rel, content := range map[string]string{
		"somedata.csv":      uuid.NewString(),
		"dir/deep_data.csv": uuid.NewString(),
	} {
		p := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

// IsUUIDv4 reports whether s is a UUID v4, the shape of generated aliases.
func IsUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4
}
