// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

func TestOpenPicksBackendByScheme(t *testing.T) {
	ctx := context.Background()

	fsStore, err := bucket.Open(ctx, "file:///srv/buckets/models", config.S3Config{}, bucket.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	assert.IsType(t, &bucket.FSStore{}, fsStore)
	assert.Equal(t, "file:///srv/buckets/models/dataset/d/1/", fsStore.URI("dataset/d/1"))

	s3Store, err := bucket.Open(ctx, "s3://models/prefix", config.S3Config{Region: "us-east-1"})
	require.NoError(t, err)
	assert.IsType(t, &bucket.S3Store{}, s3Store)
	assert.Equal(t, "s3://models/prefix", s3Store.Root())
	assert.Equal(t, "s3://models/prefix/model/m/v1/", s3Store.URI("model/m/v1"))

	rel, ok := s3Store.Rel("s3://models/prefix/model/m/v1/")
	assert.True(t, ok)
	assert.Equal(t, "model/m/v1", rel)
	_, ok = s3Store.Rel("s3://models/other/model/m/v1/")
	assert.False(t, ok)
	_, ok = s3Store.Rel("s3://other/prefix/model/m/v1/")
	assert.False(t, ok)

	_, err = bucket.Open(ctx, "gs://models", config.S3Config{})
	assert.ErrorIs(t, err, bucket.ErrUnsupportedScheme)

	_, err = bucket.Open(ctx, "s3:///nobucket", config.S3Config{})
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", bucket.Transient(errors.New("boom")), true},
		{"wrapped marked", fmt.Errorf("upload: %w", bucket.Transient(errors.New("boom"))), true},
		{"net timeout", fmt.Errorf("get: %w", timeoutErr{}), true},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"not found", bucket.ErrNotFound, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("disk full"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, bucket.IsTransient(tc.err))
		})
	}
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := bucket.Transient(cause)
	assert.ErrorIs(t, err, bucket.ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, bucket.Transient(err))
	assert.Nil(t, bucket.Transient(nil))
}
