// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/choria-io/archinstall/model"
)

// TreeCopy copies a whole extracted payload into Destination, preserving relative paths below
// the unwrapped payload root
type TreeCopy struct {
	destination string
	opts        *options
}

var _ model.ContentHandler = (*TreeCopy)(nil)

// NewTreeCopy creates a handler that copies the extracted payload into destination
func NewTreeCopy(destination string, opts ...Option) (*TreeCopy, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("%w: destination is required", model.ErrInvalidArgument)
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return &TreeCopy{destination: destination, opts: o}, nil
}

// Destination is the directory files are copied into
func (t *TreeCopy) Destination() string {
	return t.destination
}

func (t *TreeCopy) Handle(ctx context.Context, extractedRoot string, reporter model.Reporter) error {
	reporter = reporterOrNop(reporter)

	err := ctx.Err()
	if err != nil {
		return model.CanceledError(err)
	}

	reporter.Status("Preparing files...")
	reporter.Progress(0)

	source := Unwrap(extractedRoot, t.opts.unwrapDepth)
	t.opts.log.Debug("Copying extracted tree", "source", source, "destination", t.destination)

	files, err := collectFiles(source, true, t.opts.selector)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%w: no files found in extracted directory: %s", model.ErrContentHandler, source)
	}

	err = copyFiles(ctx, files, t.destination, reporter, t.opts.log)
	if err != nil {
		return err
	}

	reporter.Status(fmt.Sprintf("Files copied to %s", t.destination))

	return nil
}
