// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// DirectoryCopy copies the files of one named directory found anywhere in the extracted tree,
// for example a single architecture slice like jniLibs/arm64-v8a
type DirectoryCopy struct {
	directory   string
	destination string
	recursive   bool
	opts        *options
}

var _ model.ContentHandler = (*DirectoryCopy)(nil)

// NewDirectoryCopy creates a handler copying the contents of directory into destination. When
// recursive is false only the files directly inside directory are copied
func NewDirectoryCopy(directory string, destination string, recursive bool, opts ...Option) (*DirectoryCopy, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, fmt.Errorf("%w: directory is required", model.ErrInvalidArgument)
	}

	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("%w: destination is required", model.ErrInvalidArgument)
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return &DirectoryCopy{
		directory:   directory,
		destination: destination,
		recursive:   recursive,
		opts:        o,
	}, nil
}

func (d *DirectoryCopy) Handle(ctx context.Context, extractedRoot string, reporter model.Reporter) error {
	reporter = reporterOrNop(reporter)

	err := ctx.Err()
	if err != nil {
		return model.CanceledError(err)
	}

	reporter.Status(fmt.Sprintf("Searching for %s...", d.directory))
	reporter.Progress(0)

	source := filepath.Join(extractedRoot, filepath.FromSlash(d.directory))
	if !iu.IsDirectory(source) {
		found, ok := FindDirectory(extractedRoot, d.directory)
		if !ok {
			return fmt.Errorf("%w: directory %s not found in %s", model.ErrContentHandler, d.directory, extractedRoot)
		}
		source = found
	}

	files, err := collectFiles(source, d.recursive, d.opts.selector)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%w: no files found in: %s", model.ErrContentHandler, source)
	}

	d.opts.log.Debug("Copying directory", "source", source, "destination", d.destination, "files", len(files))

	err = copyFiles(ctx, files, d.destination, reporter, d.opts.log)
	if err != nil {
		return err
	}

	reporter.Status(fmt.Sprintf("%s installed", d.directory))

	return nil
}
