// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newMemStore() (*bucket.FSStore, afero.Fs) {
	fs := afero.NewMemMapFs()
	return bucket.NewFSStore("/buckets/models", bucket.WithFs(fs)), fs
}

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, fs := newMemStore()
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"data.csv":            "a,b\n1,2\n",
		"dir/deep_data.csv":   "x,y\n",
		"dir/nested/model.pt": "weights",
	})

	uploaded, err := store.UploadDir(ctx, src, "model/my_model/v1")
	require.NoError(t, err)
	require.Len(t, uploaded, 3)

	ok, err := afero.Exists(fs, "/buckets/models/model/my_model/v1/dir/nested/model.pt")
	require.NoError(t, err)
	assert.True(t, ok)

	dst := t.TempDir()
	downloaded, err := store.DownloadDir(ctx, "model/my_model/v1", dst, false)
	require.NoError(t, err)
	require.Len(t, downloaded, 3)

	byPath := map[string]string{}
	for _, f := range uploaded {
		byPath[f.Path] = f.Digest
	}
	for _, f := range downloaded {
		assert.Equal(t, byPath[f.Path], f.Digest, f.Path)
	}
	got, err := os.ReadFile(filepath.Join(dst, "dir", "nested", "model.pt"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(got))
}

func TestFSStoreExistsAndIsDir(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	_, err := store.UploadDir(ctx, src, "t/n/a")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "t/n/a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsDir(ctx, "t/n/a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsDir(ctx, "t/n/a/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "t/n/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.IsDir(ctx, "t/n/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSStoreRemove(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	_, err := store.UploadDir(ctx, src, "t/n/a")
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "t/n/a", true))
	ok, err := store.Exists(ctx, "t/n/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, store.Remove(ctx, "", true))
}

func TestFSStoreDownloadMissing(t *testing.T) {
	store, _ := newMemStore()
	_, err := store.DownloadDir(context.Background(), "t/n/none", t.TempDir(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bucket.ErrNotFound))
}

func TestFSStoreResumeSkipsCompleteFiles(t *testing.T) {
	ctx := context.Background()
	store, fs := newMemStore()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "aaaa", "b.txt": "bbbb"})
	_, err := store.UploadDir(ctx, src, "t/n/a")
	require.NoError(t, err)

	dst := t.TempDir()
	// same size, different bytes: a resumed download must keep it
	writeTree(t, dst, map[string]string{"a.txt": "zzzz"})

	files, err := store.DownloadDir(ctx, "t/n/a", dst, true)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	got, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	assert.Equal(t, "zzzz", string(got))

	_, err = store.DownloadDir(ctx, "t/n/a", dst, false)
	require.NoError(t, err)
	got, _ = os.ReadFile(filepath.Join(dst, "a.txt"))
	assert.Equal(t, "aaaa", string(got))

	assertNoStagingFiles(t, fs, "/buckets/models")
}

func assertNoStagingFiles(t *testing.T, fs afero.Fs, root string) {
	t.Helper()
	require.NoError(t, afero.Walk(fs, root, func(name string, _ os.FileInfo, err error) error {
		require.NoError(t, err)
		assert.NotContains(t, filepath.Base(name), config.StagingPrefix)
		return nil
	}))
}

func TestFSStoreKeepsPartFiles(t *testing.T) {
	ctx := context.Background()
	store, fs := newMemStore()
	src := t.TempDir()
	tree := map[string]string{
		"weights":             "full",
		"weights.part":        "shard-0",
		"shards/model.part":   "shard-1",
		"shards/model.part.1": "shard-2",
	}
	writeTree(t, src, tree)

	uploaded, err := store.UploadDir(ctx, src, "model/m/v1")
	require.NoError(t, err)
	assert.Len(t, uploaded, len(tree))
	assertNoStagingFiles(t, fs, "/buckets/models")

	dst := t.TempDir()
	downloaded, err := store.DownloadDir(ctx, "model/m/v1", dst, false)
	require.NoError(t, err)
	assert.Len(t, downloaded, len(tree))
	for rel, want := range tree {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(got), rel)
	}
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), config.StagingPrefix)
	}
}

func TestFSStoreRefusesStagingNames(t *testing.T) {
	store, fs := newMemStore()
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"ok.txt":                        "x",
		config.StagingPrefix + "123abc": "y",
	})

	_, err := store.UploadDir(context.Background(), src, "model/m/v1")
	require.ErrorContains(t, err, "reserved for staging files")
	ok, _ := afero.Exists(fs, "/buckets/models/model/m/v1/ok.txt")
	assert.False(t, ok)
}

func TestFSStoreURIAndRel(t *testing.T) {
	store, _ := newMemStore()
	assert.Equal(t, "file:///buckets/models", store.Root())
	assert.Equal(t, "file:///buckets/models/model/m/v1/", store.URI("model/m/v1"))

	rel, ok := store.Rel("file:///buckets/models/model/m/v1/")
	assert.True(t, ok)
	assert.Equal(t, "model/m/v1", rel)

	_, ok = store.Rel("file:///elsewhere/model/m/v1/")
	assert.False(t, ok)
	_, ok = store.Rel("s3://models/model/m/v1/")
	assert.False(t, ok)
}
