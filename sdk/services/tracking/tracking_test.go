// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package tracking_test

import (
	"archive/tar"
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/bucketref-cli-sdk/internal/testutil"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/tracking"
)

func newService(t *testing.T) (*tracking.TrackingService, *testutil.FakeCore) {
	t.Helper()
	core := testutil.NewFakeCore(t)
	svc, err := tracking.NewTrackingService(context.Background(), core.Config("mlops"))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, core
}

func TestNewTrackingServiceValidatesConfig(t *testing.T) {
	core := testutil.NewFakeCore(t)
	cfg := core.Config("")
	_, err := tracking.NewTrackingService(context.Background(), cfg)
	require.Error(t, err)

	cfg = core.Config("p")
	cfg.Core.BaseURL = ""
	_, err = tracking.NewTrackingService(context.Background(), cfg)
	require.Error(t, err)
}

func TestStartAndFinishRun(t *testing.T) {
	ctx := context.Background()
	svc, core := newService(t)

	run, err := svc.StartRun(ctx, tracking.RunOptions{
		Name:    "train-1",
		JobType: "train",
		Config:  map[string]string{"lr": "0.1"},
		Tags:    []string{"job_id:42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "train-1", run.Name)
	assert.Equal(t, tracking.StateRunning, run.State)
	assert.Equal(t, map[string]string{"lr": "0.1"}, run.Config)
	assert.Equal(t, []string{"job_id:42"}, run.Tags)
	assert.NotEmpty(t, run.Key)

	require.NoError(t, svc.FinishRun(ctx, run, tracking.StateCompleted))
	assert.Equal(t, tracking.StateCompleted, run.State)

	stored := core.Run(run.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "COMPLETED", stored["status"].(map[string]any)["state"])
	assert.Equal(t, "train", stored["spec"].(map[string]any)["job_type"])
}

func TestReferenceArtifactLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, core := newService(t)

	producer, err := svc.StartRun(ctx, tracking.RunOptions{JobType: "upload"})
	require.NoError(t, err)

	art := tracking.NewArtifact("my_model", "model", map[string]string{"owner": "me"})
	art.AddReference("platform_blob", "s3://models/model/my_model/v1/")
	logged, err := svc.LogArtifact(ctx, producer, art, []string{"v1"})
	require.NoError(t, err)
	assert.NotEmpty(t, logged.ID)
	assert.Equal(t, []string{"v1"}, logged.Aliases)

	stored := core.Artifacts()
	require.Len(t, stored, 1)
	rels := stored[0]["metadata"].(map[string]any)["relationships"].([]any)
	assert.Equal(t, "produced_by", rels[0].(map[string]any)["type"])
	assert.Equal(t, producer.Key, rels[0].(map[string]any)["dest"])

	consumer, err := svc.StartRun(ctx, tracking.RunOptions{JobType: "download"})
	require.NoError(t, err)
	found, err := svc.UseArtifact(ctx, consumer, tracking.Ref("my_model", "v1"), "model")
	require.NoError(t, err)
	assert.Equal(t, logged.ID, found.ID)
	assert.Equal(t, map[string]string{"owner": "me"}, found.Metadata)
	uri, ok := found.Reference("platform_blob")
	assert.True(t, ok)
	assert.Equal(t, "s3://models/model/my_model/v1/", uri)
	assert.False(t, found.Embedded)

	// twice: the relationship is merged, not duplicated
	_, err = svc.UseArtifact(ctx, consumer, tracking.Ref("my_model", "v1"), "model")
	require.NoError(t, err)
	consumerRels := core.Run(consumer.ID)["metadata"].(map[string]any)["relationships"].([]any)
	require.Len(t, consumerRels, 1)
	assert.Equal(t, "consumes", consumerRels[0].(map[string]any)["type"])
	assert.Equal(t, found.Key, consumerRels[0].(map[string]any)["dest"])
}

func TestAliasMovesToNewestVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first := tracking.NewArtifact("ds", "dataset", nil)
	first.AddReference("platform_blob", "s3://b/dataset/ds/latest/")
	v1, err := svc.LogArtifact(ctx, nil, first, []string{"latest"})
	require.NoError(t, err)

	second := tracking.NewArtifact("ds", "dataset", nil)
	second.AddReference("platform_blob", "s3://b/dataset/ds/latest/")
	v2, err := svc.LogArtifact(ctx, nil, second, []string{"latest"})
	require.NoError(t, err)
	require.NotEqual(t, v1.ID, v2.ID)

	found, err := svc.UseArtifact(ctx, nil, tracking.Ref("ds", "latest"), "dataset")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, found.ID)
}

func TestUseArtifactNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.UseArtifact(context.Background(), nil, tracking.Ref("nope", "v1"), "model")
	require.ErrorIs(t, err, tracking.ErrArtifactNotFound)

	_, err = svc.UseArtifact(context.Background(), nil, "no-alias", "model")
	require.Error(t, err)
}

func TestEmbeddedArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	src := testutil.RandomArtifactDir(t)

	art := tracking.NewArtifact("inline", "dataset", nil)
	require.NoError(t, art.AddDirectory(src))
	assert.True(t, art.Embedded)
	assert.Len(t, art.Manifest, 2)
	assert.NotEmpty(t, art.Manifest["dir/deep_data.csv"].Digest)

	_, err := svc.LogArtifact(ctx, nil, art, []string{"v0"})
	require.NoError(t, err)

	found, err := svc.UseArtifact(ctx, nil, tracking.Ref("inline", "v0"), "dataset")
	require.NoError(t, err)
	require.True(t, found.Embedded)
	_, hasRef := found.Reference("platform_blob")
	assert.False(t, hasRef)

	dest := filepath.Join(t.TempDir(), "out")
	got, err := svc.Download(ctx, found, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.Equal(t, testutil.HashTree(t, src), testutil.HashTree(t, dest))
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	payload := []byte("evil")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     "../escape.txt",
		Mode:     0o644,
		Size:     int64(len(payload)),
	}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())

	_, err = tracking.Unpack(&buf, t.TempDir())
	require.Error(t, err)
}

func TestPackUnpackKeepsTree(t *testing.T) {
	src := testutil.RandomArtifactDir(t)
	var buf bytes.Buffer
	require.NoError(t, tracking.Pack(&buf, src))

	dest := t.TempDir()
	files, err := tracking.Unpack(&buf, dest)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, testutil.HashTree(t, src), testutil.HashTree(t, dest))
}
