// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
)

var (
	// ErrNotFound is returned when nothing lives under a bucket path.
	ErrNotFound = errors.New("bucket path not found")

	// ErrTransient marks failures worth retrying: connection drops,
	// timeouts, throttling and 5xx answers from the object store.
	ErrTransient = errors.New("transient transfer error")

	ErrUnsupportedScheme = errors.New("unsupported bucket scheme")
)

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

var awsRetryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// IsTransient reports whether err belongs to the retryable class.
// Cancellation of the caller's context never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return awsRetryables.IsErrorRetryable(err) == aws.TrueTernary
}

// classify tags retryable backend errors with ErrTransient.
func classify(err error) error {
	if IsTransient(err) {
		return Transient(err)
	}
	return err
}
