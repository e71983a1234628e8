// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrNotSupported      = errors.New("archive format not supported")
	ErrEmptyArchive      = errors.New("empty archive")
	ErrMalformedArchive  = errors.New("malformed archive")
	ErrCanceled          = errors.New("canceled")
	ErrContentHandler    = errors.New("content handler failed")
	ErrDownload          = errors.New("download failed")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrUnknownCache      = errors.New("unknown cache")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
)

// CanceledError wraps a context error so that callers can match both ErrCanceled and the
// underlying context.Canceled or context.DeadlineExceeded
func CanceledError(cause error) error {
	if cause == nil {
		return ErrCanceled
	}

	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// IsCanceled determines if err represents a canceled operation
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
