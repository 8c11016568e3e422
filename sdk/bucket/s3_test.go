// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket_test

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

// fakeS3 serves the path-style calls the store makes on one bucket:
// HEAD and DELETE on objects, ListObjectsV2 and DeleteObjects.
type fakeS3 struct {
	*httptest.Server
	bucket string

	mu      sync.Mutex
	objects map[string]string
}

type listResult struct {
	XMLName     xml.Name     `xml:"ListBucketResult"`
	Name        string       `xml:"Name"`
	Prefix      string       `xml:"Prefix"`
	KeyCount    int          `xml:"KeyCount"`
	MaxKeys     int          `xml:"MaxKeys"`
	IsTruncated bool         `xml:"IsTruncated"`
	Contents    []listObject `xml:"Contents"`
}

type listObject struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

func newFakeS3(t *testing.T, bucketName string, objects map[string]string) *fakeS3 {
	t.Helper()
	f := &fakeS3{bucket: bucketName, objects: objects}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucketName, key, _ := strings.Cut(path, "/")
	if bucketName != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	q := r.URL.Query()

	switch {
	case r.Method == http.MethodGet && key == "" && q.Get("list-type") == "2":
		prefix := q.Get("prefix")
		res := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
		for _, k := range f.keys() {
			if strings.HasPrefix(k, prefix) {
				res.Contents = append(res.Contents, listObject{Key: k, Size: len(f.objects[k])})
			}
		}
		res.KeyCount = len(res.Contents)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)
	case r.Method == http.MethodPost && key == "" && q.Has("delete"):
		var req deleteRequest
		if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, o := range req.Objects {
			delete(f.objects, o.Key)
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<DeleteResult></DeleteResult>`))
	case r.Method == http.MethodHead && key != "":
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && key != "":
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) keys() []string {
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *fakeS3) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys()
}

func newFakeS3Store(t *testing.T, objects map[string]string) (*bucket.S3Store, *fakeS3) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	srv := newFakeS3(t, "models", objects)
	store, err := bucket.NewS3Store(context.Background(), "models", "", config.S3Config{
		AccessKey:   "test",
		SecretKey:   "test",
		Region:      "us-east-1",
		EndpointURL: srv.URL,
	})
	require.NoError(t, err)
	return store, srv
}

func TestS3StoreRecursiveRemoveDeletesKeyObject(t *testing.T) {
	ctx := context.Background()
	store, srv := newFakeS3Store(t, map[string]string{
		"model/m/v1":          "stray object at the artifact key",
		"model/m/v1/a.txt":    "a",
		"model/m/v1/dir/b.pt": "b",
		"model/m/v10/c.txt":   "sibling",
	})

	ok, err := store.Exists(ctx, "model/m/v1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Remove(ctx, "model/m/v1", true))
	assert.Equal(t, []string{"model/m/v10/c.txt"}, srv.Keys())

	ok, err = store.Exists(ctx, "model/m/v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3StoreRemoveRefusesRoot(t *testing.T) {
	store, srv := newFakeS3Store(t, map[string]string{"a.txt": "a"})
	require.Error(t, store.Remove(context.Background(), "", true))
	assert.Equal(t, []string{"a.txt"}, srv.Keys())
}
