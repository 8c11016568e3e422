// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
)

var (
	// ErrInvalidArgument covers malformed aliases, identities and paths.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrArtifactExists is returned when the bucket path is taken and
	// overwrite was not requested.
	ErrArtifactExists = errors.New("artifact exists")

	// ErrTransferFailed is returned once retries are exhausted; it wraps
	// the last transient error.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrRunAlreadyActive is returned when a second run is started on the
	// same service.
	ErrRunAlreadyActive = errors.New("run already active")

	// ErrTransient is the class of errors the retry policy retries.
	ErrTransient = bucket.ErrTransient
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// validateIdentity checks that (type, name, alias) maps to exactly one
// bucket path.
func validateIdentity(kind, name, alias string) error {
	for _, part := range []struct{ field, value string }{
		{"type", kind},
		{"name", name},
		{"alias", alias},
	} {
		switch {
		case part.value == "":
			return invalidf("artifact %s is empty", part.field)
		case part.value == "." || part.value == "..":
			return invalidf("artifact %s %q is not allowed", part.field, part.value)
		case strings.Contains(part.value, "/"):
			return invalidf("artifact %s %q must not contain '/'", part.field, part.value)
		}
	}
	return nil
}

// bucketPath is the path of an artifact relative to the bucket root.
func bucketPath(kind, name, alias string) string {
	return kind + "/" + name + "/" + alias
}
