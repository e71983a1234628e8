// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package cache keeps extracted archives in a stable directory so several installs can reuse a
// single download and extraction
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/choria-io/archinstall/archive"
	"github.com/choria-io/archinstall/handler"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/metrics"
	"github.com/choria-io/archinstall/model"
	"github.com/choria-io/archinstall/pipeline"
)

// CompleteMarker is written last into a populated cache, a cache without it is never used
const CompleteMarker = model.CompleteMarker

// Cache is an extracted archive kept below a cache root
type Cache struct {
	def        Definition
	root       string
	tempRoot   string
	downloader model.Downloader
	observer   model.Observer
	log        model.Logger
	margin     int64
	checksum   string
}

// Option configures a Cache
type Option func(*Cache) error

// WithLogger sets the logger
func WithLogger(log model.Logger) Option {
	return func(c *Cache) error {
		c.log = log
		return nil
	}
}

// WithObserver receives status, progress and cache change notifications
func WithObserver(o model.Observer) Option {
	return func(c *Cache) error {
		if o == nil {
			return fmt.Errorf("%w: observer is required", model.ErrInvalidArgument)
		}

		c.observer = o
		return nil
	}
}

// WithTempRoot sets where downloads are stored before extraction
func WithTempRoot(root string) Option {
	return func(c *Cache) error {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("%w: temporary root is required", model.ErrInvalidArgument)
		}

		c.tempRoot = root
		return nil
	}
}

// WithFreeSpaceMargin sets the safety margin required on top of the estimated extracted size,
// a negative margin disables the free space check
func WithFreeSpaceMargin(margin int64) Option {
	return func(c *Cache) error {
		c.margin = margin
		return nil
	}
}

// WithChecksum verifies downloaded archives against a hex encoded sha256 sum before extraction
func WithChecksum(sum string) Option {
	return func(c *Cache) error {
		parsed, err := pipeline.ParseChecksum(sum)
		if err != nil {
			return err
		}

		c.checksum = parsed
		return nil
	}
}

// New creates a cache for def stored below root
func New(def Definition, root string, downloader model.Downloader, opts ...Option) (*Cache, error) {
	err := def.Validate()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: cache root is required", model.ErrInvalidArgument)
	}

	if downloader == nil {
		return nil, fmt.Errorf("%w: downloader is required", model.ErrInvalidArgument)
	}

	c := &Cache{
		def:        def,
		root:       root,
		tempRoot:   os.TempDir(),
		downloader: downloader,
		observer:   model.NopObserver{},
		log:        model.NopLogger{},
		margin:     iu.FreeSpaceMargin,
	}

	for _, opt := range opts {
		err = opt(c)
		if err != nil {
			return nil, err
		}
	}

	c.log = c.log.With("cache", def.Name)

	return c, nil
}

// Definition is the definition the cache was created with
func (c *Cache) Definition() Definition {
	return c.def
}

// Path is the stable directory holding the extracted archive
func (c *Cache) Path() string {
	return filepath.Join(c.root, c.def.Name)
}

// IsReady indicates a complete extraction holding the marker directory is present
func (c *Cache) IsReady() bool {
	if !iu.FileExists(filepath.Join(c.Path(), CompleteMarker)) {
		return false
	}

	_, found := handler.FindDirectory(c.Path(), c.def.Marker)

	return found
}

// FindDirectoryInCache searches the cache for a directory called name
func (c *Cache) FindDirectoryInCache(name string) (string, bool) {
	if !iu.IsDirectory(c.Path()) {
		return "", false
	}

	return handler.FindDirectory(c.Path(), name)
}

// EnsureExtracted makes sure the cache holds the extracted contents of url. A ready cache is left
// untouched, otherwise the archive is downloaded, validated and extracted into a staging directory
// that replaces the cache once complete. Concurrent callers for the same directory wait for one
// another and share the result
func (c *Cache) EnsureExtracted(ctx context.Context, url string, fileName string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", model.ErrInvalidArgument)
	}

	if c.ready() {
		return nil
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// another caller might have populated the cache while we waited
	return c.ensureLocked(ctx, url, fileName)
}

// Use ensures the cache like EnsureExtracted and calls fn with the cache directory. The directory
// lock is held until fn returns so Clean and repopulation can not remove files fn is reading
func (c *Cache) Use(ctx context.Context, url string, fileName string, fn func(path string) error) error {
	if fn == nil {
		return fmt.Errorf("%w: function is required", model.ErrInvalidArgument)
	}

	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", model.ErrInvalidArgument)
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = c.ensureLocked(ctx, url, fileName)
	if err != nil {
		return err
	}

	return fn(c.Path())
}

func (c *Cache) lock(ctx context.Context) (func(), error) {
	unlock, err := directoryLocks.lock(ctx, lockKey(c.Path()))
	if err != nil {
		return nil, model.CanceledError(err)
	}

	return unlock, nil
}

func (c *Cache) ensureLocked(ctx context.Context, url string, fileName string) error {
	if c.ready() {
		return nil
	}

	metrics.CacheMissCount.WithLabelValues(c.def.Name).Inc()

	start := time.Now()
	err := c.populate(ctx, url, fileName)
	if err != nil {
		if ctx.Err() != nil && !model.IsCanceled(err) {
			err = model.CanceledError(ctx.Err())
		}

		c.log.Error("Could not populate cache", "error", err)
		return err
	}

	c.log.Info("Cache populated", "path", c.Path(), "duration", time.Since(start).Round(time.Millisecond))
	c.observer.Status(fmt.Sprintf("%s archive cached.", c.def.label()))
	c.observer.Progress(1)
	c.observer.CacheChanged()

	return nil
}

func (c *Cache) ready() bool {
	if !c.IsReady() {
		return false
	}

	metrics.CacheHitCount.WithLabelValues(c.def.Name).Inc()
	c.log.Debug("Cache ready", "path", c.Path())
	c.observer.Status(fmt.Sprintf("%s cache ready, skipping download.", c.def.label()))
	c.observer.Progress(1)

	return true
}

func (c *Cache) populate(ctx context.Context, url string, fileName string) error {
	fileName = pipeline.ArchiveName(url, fileName)
	extractor, err := archive.NewExtractor(fileName)
	if err != nil {
		return err
	}

	downloadDir, err := pipeline.TempDir(c.tempRoot, fmt.Sprintf("archinstall-%s-download", c.def.Name))
	if err != nil {
		return err
	}
	defer c.removeAll(downloadDir)

	c.observer.Status(fmt.Sprintf("Downloading %s archive...", c.def.label()))
	c.observer.Progress(0)

	archivePath, err := pipeline.Download(ctx, c.downloader, downloadDir, url, fileName, c.observer)
	if err != nil {
		return err
	}

	err = archive.Validate(archivePath)
	if err != nil {
		return err
	}

	if c.checksum != "" {
		err = pipeline.VerifyChecksum(ctx, archivePath, c.checksum)
		if err != nil {
			return err
		}
	}

	err = os.MkdirAll(c.root, 0755)
	if err != nil {
		return err
	}

	staging := filepath.Join(c.root, fmt.Sprintf(".%s-staging-%s", c.def.Name, ksuid.New().String()))
	defer c.removeAll(staging)

	err = pipeline.CheckSpace(ctx, archivePath, c.root, c.margin)
	if err != nil {
		return err
	}

	c.observer.Status(fmt.Sprintf("Extracting %s archive...", c.def.label()))

	err = pipeline.Extract(ctx, extractor, archivePath, staging, c.observer)
	if err != nil {
		return err
	}

	_, found := handler.FindDirectory(staging, c.def.Marker)
	if !found {
		return fmt.Errorf("%w: %s not found in %s", model.ErrNotFound, c.def.Marker, filepath.Base(archivePath))
	}

	err = os.WriteFile(filepath.Join(staging, CompleteMarker), []byte(time.Now().UTC().Format(time.RFC3339)), 0644)
	if err != nil {
		return err
	}

	return c.publish(staging)
}

// publish replaces the cache directory with staging
func (c *Cache) publish(staging string) error {
	err := os.RemoveAll(c.Path())
	if err != nil {
		return err
	}

	return os.Rename(staging, c.Path())
}

// Clean deletes the cache directory and any abandoned staging directories, it waits for ctx
// while another caller holds the cache
func (c *Cache) Clean(ctx context.Context) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = os.RemoveAll(c.Path())
	if err != nil {
		c.log.Error("Could not clean cache", "error", err)
		return err
	}

	stale, _ := filepath.Glob(filepath.Join(c.root, fmt.Sprintf(".%s-staging-*", c.def.Name)))
	for _, dir := range stale {
		c.removeAll(dir)
	}

	metrics.CacheCleanCount.WithLabelValues(c.def.Name).Inc()
	c.log.Info("Cache cleaned", "path", c.Path())
	c.observer.CacheChanged()

	return nil
}

func (c *Cache) removeAll(dir string) {
	err := os.RemoveAll(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn("Could not remove directory", "dir", dir, "error", err)
	}
}
