// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package handler holds content handlers that place extracted archive files into their final
// location and the helpers they share for locating content inside an extracted tree
package handler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// DefaultUnwrapDepth is how many single directory wrappers are removed from an extracted tree
const DefaultUnwrapDepth = 3

// Option configures a content handler
type Option func(*options) error

type options struct {
	selector    Selector
	unwrapDepth int
	log         model.Logger
}

// WithSelector only copies files accepted by s, when given several times every selector has to accept a file
func WithSelector(s Selector) Option {
	return func(o *options) error {
		if s == nil {
			return fmt.Errorf("%w: selector is required", model.ErrInvalidArgument)
		}

		if o.selector == nil {
			o.selector = s
			return nil
		}

		prev := o.selector
		o.selector = SelectorFunc(func(rel string, info fs.FileInfo) (bool, error) {
			ok, err := prev.Select(rel, info)
			if err != nil || !ok {
				return false, err
			}

			return s.Select(rel, info)
		})

		return nil
	}
}

// WithUnwrapDepth sets how many wrapper directories may be removed, 0 disables unwrapping
func WithUnwrapDepth(depth int) Option {
	return func(o *options) error {
		if depth < 0 {
			return fmt.Errorf("%w: unwrap depth can not be negative", model.ErrInvalidArgument)
		}

		o.unwrapDepth = depth
		return nil
	}
}

// WithLogger sets the logger used by the handler
func WithLogger(log model.Logger) Option {
	return func(o *options) error {
		o.log = log
		return nil
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		unwrapDepth: DefaultUnwrapDepth,
		log:         model.NopLogger{},
	}

	for _, opt := range opts {
		err := opt(o)
		if err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Unwrap descends from root while the current directory holds exactly one subdirectory and no
// files, at most maxDepth times. Root is returned unchanged when nothing can be unwrapped
func Unwrap(root string, maxDepth int) string {
	current := root

	for range maxDepth {
		entries, err := os.ReadDir(current)
		if err != nil {
			return current
		}

		entries = slices.DeleteFunc(entries, func(e os.DirEntry) bool { return e.Name() == model.CompleteMarker })
		if len(entries) != 1 || !entries[0].IsDir() {
			return current
		}

		current = filepath.Join(current, entries[0].Name())
	}

	return current
}

// FindDirectory searches below root, shallowest first, for a directory called name. Name may
// hold several / separated segments, in which case the trailing segments of the found path must
// match all of them
func FindDirectory(root string, name string) (string, bool) {
	want := strings.Trim(filepath.ToSlash(name), "/")
	if want == "" {
		return "", false
	}

	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(current)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			candidate := filepath.Join(current, entry.Name())
			rel, err := filepath.Rel(root, candidate)
			if err != nil {
				continue
			}

			rel = filepath.ToSlash(rel)
			if rel == want || strings.HasSuffix(rel, "/"+want) {
				return candidate, true
			}

			queue = append(queue, candidate)
		}
	}

	return "", false
}

// sourceFile is a file found in an extracted tree
type sourceFile struct {
	path string
	rel  string
}

// collectFiles lists the regular files below dir accepted by selector, sorted by relative path
func collectFiles(dir string, recursive bool, selector Selector) ([]sourceFile, error) {
	var found []sourceFile

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || d.Name() == model.CompleteMarker {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if selector != nil {
			info, err := d.Info()
			if err != nil {
				return err
			}

			ok, err := selector.Select(rel, info)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		found = append(found, sourceFile{path: path, rel: rel})

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(found, func(a, b sourceFile) int { return strings.Compare(a.rel, b.rel) })

	return found, nil
}

// copyFiles copies files into dest preserving their relative paths and reports progress per file
func copyFiles(ctx context.Context, files []sourceFile, dest string, reporter model.Reporter, log model.Logger) error {
	err := os.MkdirAll(dest, 0755)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
	}

	buf := make([]byte, iu.CopyBufferSize)

	for i, f := range files {
		err = ctx.Err()
		if err != nil {
			return model.CanceledError(err)
		}

		target := filepath.Join(dest, filepath.FromSlash(f.rel))
		err = os.MkdirAll(filepath.Dir(target), 0755)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
		}

		reporter.Status(fmt.Sprintf("Copying %s...", filepath.Base(f.rel)))
		log.Debug("Copying file", "source", f.path, "target", target)

		err = iu.CopyFile(ctx, f.path, target, buf)
		if err != nil {
			if ctx.Err() != nil {
				return model.CanceledError(ctx.Err())
			}
			return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
		}

		reporter.Progress(float64(i+1) / float64(len(files)))
	}

	return nil
}

func reporterOrNop(r model.Reporter) model.Reporter {
	if r == nil {
		return model.NopObserver{}
	}

	return r
}
