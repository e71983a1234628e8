// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/choria-io/archinstall/cache"
	"github.com/choria-io/archinstall/download"
	"github.com/choria-io/archinstall/model"
	"github.com/choria-io/archinstall/pipeline"
)

// Manager ties configuration, the downloader and the archive caches together
type Manager struct {
	cfg        *Config
	log        model.Logger
	observer   model.Observer
	downloader model.Downloader
	caches     map[string]*cache.Cache

	mu sync.Mutex
}

// Option configures a Manager
type Option func(*Manager) error

// WithLogger sets the logger used by the manager and everything it creates
func WithLogger(log model.Logger) Option {
	return func(m *Manager) error {
		m.log = log
		return nil
	}
}

// WithConfig sets the configuration, DefaultConfig() is used otherwise
func WithConfig(cfg *Config) Option {
	return func(m *Manager) error {
		if cfg == nil {
			return fmt.Errorf("%w: config is required", model.ErrInvalidArgument)
		}

		err := cfg.Validate()
		if err != nil {
			return err
		}

		m.cfg = cfg
		return nil
	}
}

// WithDownloader replaces the HTTP downloader built from configuration
func WithDownloader(d model.Downloader) Option {
	return func(m *Manager) error {
		m.downloader = d
		return nil
	}
}

// WithObserver sets the observer passed to pipelines and caches
func WithObserver(o model.Observer) Option {
	return func(m *Manager) error {
		m.observer = o
		return nil
	}
}

// New creates a Manager
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		log:      model.NopLogger{},
		observer: model.NopObserver{},
		caches:   map[string]*cache.Cache{},
	}

	for _, opt := range opts {
		err := opt(m)
		if err != nil {
			return nil, err
		}
	}

	if m.cfg == nil {
		m.cfg = DefaultConfig()
	}

	if m.downloader == nil {
		dl, err := download.New(
			download.WithLogger(m.log.With("component", "download")),
			download.WithRetries(m.cfg.DownloadRetries),
		)
		if err != nil {
			return nil, err
		}
		m.downloader = dl
	}

	return m, nil
}

// Config is the active configuration
func (m *Manager) Config() *Config {
	return m.cfg
}

// Logger creates a logger with additional fields
func (m *Manager) Logger(args ...any) model.Logger {
	return m.log.With(args...)
}

// Downloader is the downloader shared by all pipelines and caches
func (m *Manager) Downloader() model.Downloader {
	return m.downloader
}

// NewPipeline creates a pipeline that hands the extracted archive to h
func (m *Manager) NewPipeline(h model.ContentHandler, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	margin, err := m.cfg.FreeSpaceMargin()
	if err != nil {
		return nil, err
	}

	base := []pipeline.Option{
		pipeline.WithLogger(m.log.With("component", "pipeline")),
		pipeline.WithObserver(m.observer),
		pipeline.WithTempRoot(m.cfg.TempRoot),
		pipeline.WithFreeSpaceMargin(margin),
	}

	return pipeline.New(m.downloader, h, append(base, opts...)...)
}

// Install downloads url, extracts it and passes the extracted tree to h
func (m *Manager) Install(ctx context.Context, url string, fileName string, h model.ContentHandler) error {
	p, err := m.NewPipeline(h)
	if err != nil {
		return err
	}

	return p.Run(ctx, url, fileName)
}

// Cache finds the named cache in configuration or the built in presets, repeated calls return the same instance
func (m *Manager) Cache(name string) (*cache.Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if ok {
		return c, nil
	}

	cc, err := m.cfg.CacheConfig(name)
	if err != nil {
		return nil, err
	}

	margin, err := m.cfg.FreeSpaceMargin()
	if err != nil {
		return nil, err
	}

	opts := []cache.Option{
		cache.WithLogger(m.log.With("component", "cache")),
		cache.WithObserver(m.observer),
		cache.WithTempRoot(m.cfg.TempRoot),
		cache.WithFreeSpaceMargin(margin),
	}
	if cc.SHA256 != "" {
		opts = append(opts, cache.WithChecksum(cc.SHA256))
	}

	c, err = cache.New(cc.Definition, m.cfg.CacheRoot, m.downloader, opts...)
	if err != nil {
		return nil, err
	}

	m.caches[name] = c

	return c, nil
}

// Caches lists the names of every known cache
func (m *Manager) Caches() []string {
	return m.cfg.CacheNames()
}

// EnsureCache makes sure the named cache is extracted, url and fileName default to the cache configuration
func (m *Manager) EnsureCache(ctx context.Context, name string, url string, fileName string) (*cache.Cache, error) {
	c, url, fileName, err := m.cacheSource(name, url, fileName)
	if err != nil {
		return nil, err
	}

	err = c.EnsureExtracted(ctx, url, fileName)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// InstallFromCache ensures the named cache and runs h against the cache directory so several targets share one extraction.
// The cache can not be cleaned or repopulated while h runs
func (m *Manager) InstallFromCache(ctx context.Context, name string, url string, fileName string, h model.ContentHandler) error {
	if h == nil {
		return fmt.Errorf("%w: content handler is required", model.ErrInvalidArgument)
	}

	c, url, fileName, err := m.cacheSource(name, url, fileName)
	if err != nil {
		return err
	}

	return c.Use(ctx, url, fileName, func(path string) error {
		err := h.Handle(ctx, path, m.observer)
		if err != nil {
			if ctx.Err() != nil {
				return model.CanceledError(ctx.Err())
			}

			return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
		}

		return nil
	})
}

// cacheSource finds the named cache and the archive populating it, a blank url selects the configured one
func (m *Manager) cacheSource(name string, url string, fileName string) (*cache.Cache, string, string, error) {
	c, err := m.Cache(name)
	if err != nil {
		return nil, "", "", err
	}

	cc, err := m.cfg.CacheConfig(name)
	if err != nil {
		return nil, "", "", err
	}

	if url == "" {
		url = cc.URL
		if fileName == "" {
			fileName = cc.File
		}
	}

	return c, url, fileName, nil
}
