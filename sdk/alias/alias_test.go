// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package alias_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/bucketref-cli-sdk/internal/testutil"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/alias"
)

func ptr(s string) *string { return &s }

func TestResolveExplicitPassthrough(t *testing.T) {
	for _, in := range []string{"v1", "latest", "best-model", "a b c", "ÜNICODE", "x:y"} {
		got, err := alias.Resolve(ptr(in), map[string]string{"lr": "0.1"})
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestResolveEmptyExplicitIsInvalid(t *testing.T) {
	_, err := alias.Resolve(ptr(""), nil)
	require.ErrorIs(t, err, alias.ErrInvalidAlias)
}

func TestResolveGeneratedIsUUIDv4(t *testing.T) {
	a, err := alias.Resolve(nil, map[string]string{"lr": "0.1"})
	require.NoError(t, err)
	b, err := alias.Resolve(nil, nil)
	require.NoError(t, err)

	for _, s := range []string{a, b} {
		id, err := uuid.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), id.Version())
		assert.True(t, testutil.IsUUIDv4(s))
	}
	assert.NotEqual(t, a, b)
}

func TestResolveConfigHashDeterministic(t *testing.T) {
	first := map[string]string{"lr": "0.1", "epochs": "10", "model": "resnet"}
	second := map[string]string{}
	// same content, different insertion order
	second["model"] = "resnet"
	second["lr"] = "0.1"
	second["epochs"] = "10"

	a, err := alias.Resolve(ptr(alias.RunConfigHash), first)
	require.NoError(t, err)
	b, err := alias.Resolve(ptr(alias.RunConfigHash), second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	want := sha256.Sum256([]byte("epochs=10 lr=0.1 model=resnet"))
	assert.Equal(t, hex.EncodeToString(want[:]), a)
	assert.Len(t, a, 64)
	assert.False(t, testutil.IsUUIDv4(a))
}

func TestResolveConfigHashDiffersOnValue(t *testing.T) {
	a := alias.ConfigHash(map[string]string{"lr": "0.1"})
	b := alias.ConfigHash(map[string]string{"lr": "0.2"})
	assert.NotEqual(t, a, b)
}

func TestResolveConfigHashWithoutConfigFallsBack(t *testing.T) {
	for _, cfg := range []map[string]string{nil, {}} {
		got, err := alias.Resolve(ptr(alias.RunConfigHash), cfg)
		require.NoError(t, err)
		assert.True(t, testutil.IsUUIDv4(got), "expected uuid fallback, got %q", got)
	}
}

func TestIsConfigHashSentinel(t *testing.T) {
	assert.True(t, alias.IsConfigHashSentinel(alias.RunConfigHash))
	for _, s := range []string{"", "v1", "run_config_hash", " " + alias.RunConfigHash} {
		assert.False(t, alias.IsConfigHashSentinel(s), s)
	}
	assert.False(t, testutil.IsUUIDv4(alias.RunConfigHash))
}
