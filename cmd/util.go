// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/SladkyCitron/slogcolor"

	"github.com/choria-io/archinstall/download"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/manager"
	"github.com/choria-io/archinstall/metrics"
	"github.com/choria-io/archinstall/model"
)

var metricsOnce sync.Once

func loadConfig() (*manager.Config, error) {
	if cfgFile == "" {
		return manager.DefaultConfig(), nil
	}

	return manager.LoadConfig(cfgFile)
}

// newManager loads the configuration, applies adjust when given and creates the manager
func newManager(adjust func(*manager.Config) error, dlOpts ...download.Option) (*manager.Manager, model.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if adjust != nil {
		err = adjust(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	if debug {
		cfg.LogLevel = "debug"
	}
	if monitorPort > 0 {
		cfg.MonitorPort = monitorPort
	}

	logger := newLogger(cfg.LogLevel)
	out := newOutputLogger()

	metricsOnce.Do(func() {
		metrics.RegisterMetrics()
		metrics.ListenAndServe(cfg.MonitorPort, logger)
	})

	opts := []manager.Option{
		manager.WithConfig(cfg),
		manager.WithLogger(logger),
		manager.WithObserver(newProgressObserver(out)),
	}

	if len(dlOpts) > 0 {
		dl, err := download.New(append([]download.Option{
			download.WithLogger(logger.With("component", "download")),
			download.WithRetries(cfg.DownloadRetries),
		}, dlOpts...)...)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, manager.WithDownloader(dl))
	}

	mgr, err := manager.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	return mgr, out, nil
}

func newOutputLogger() model.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if !iu.IsTerminal() {
		return manager.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	}

	return manager.NewSlogLogger(slog.New(slogcolor.NewHandler(os.Stdout, &slogcolor.Options{Level: level})))
}

func newLogger(level string) model.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: manager.ParseLevel(level)}))
	return manager.NewSlogLogger(logger)
}

// progressObserver prints status messages and progress in 10% steps
type progressObserver struct {
	model.NopObserver

	out  model.Logger
	last int
	mu   sync.Mutex
}

func newProgressObserver(out model.Logger) *progressObserver {
	return &progressObserver{out: out, last: -1}
}

func (p *progressObserver) Status(msg string) {
	p.out.Info(msg)
}

func (p *progressObserver) Progress(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := int(fraction * 10)
	if step == p.last {
		return
	}
	p.last = step

	p.out.Debug("Progress", "complete", fmt.Sprintf("%d%%", step*10))
}

func (p *progressObserver) StageChanged(stage model.Stage) {
	p.out.Debug("Stage changed", "stage", stage.String())
}

func (p *progressObserver) Failed(err error) {
	p.out.Error("Failed", "error", err)
}

func (p *progressObserver) Canceled() {
	p.out.Warn("Canceled")
}
