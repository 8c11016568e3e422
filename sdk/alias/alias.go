// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package alias derives the version label of an artifact.
//
// There are three ways to get an alias, depending on the explicit value:
//
//	nil                  -> a fresh UUID v4
//	"!run-config-hash"   -> SHA-256 of the sorted "key=value" run config
//	any other string     -> used as is
//
// The config-hash mode falls back to a UUID v4 when the run has no config.
package alias

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// RunConfigHash is the sentinel asking for the config-hash mode.
const RunConfigHash = "!run-config-hash"

var ErrInvalidAlias = errors.New("invalid alias")

// Resolve returns the alias for the given explicit value and run config.
func Resolve(explicit *string, config map[string]string) (string, error) {
	switch {
	case explicit == nil:
		return uuid.NewString(), nil
	case IsConfigHashSentinel(*explicit):
		if len(config) == 0 {
			return uuid.NewString(), nil
		}
		return ConfigHash(config), nil
	case *explicit == "":
		return "", fmt.Errorf("%w: empty value", ErrInvalidAlias)
	default:
		return *explicit, nil
	}
}

// ConfigHash joins the config as "k=v" pairs sorted by key, separated by a
// single space, and returns the lowercase hex SHA-256 of it.
func ConfigHash(config map[string]string) string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+config[k])
	}
	sum := sha256.Sum256([]byte(strings.Join(pairs, " ")))
	return hex.EncodeToString(sum[:])
}

// IsConfigHashSentinel reports whether s asks for the config-hash alias.
func IsConfigHashSentinel(s string) bool {
	return s == RunConfigHash
}
