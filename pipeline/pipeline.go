// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the download, validate, extract and install sequence for a single archive
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/choria-io/archinstall/archive"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/metrics"
	"github.com/choria-io/archinstall/model"
)

const (
	downloadPrefix = "archinstall-download"
	extractPrefix  = "archinstall-extract"
)

// Pipeline installs one archive per Run, it can be run again once a run finished
type Pipeline struct {
	downloader model.Downloader
	handler    model.ContentHandler
	observer   model.Observer
	log        model.Logger
	tempRoot   string
	margin     int64
	checksum   string

	stage   model.Stage
	running bool
	mu      sync.Mutex
}

// Option configures a Pipeline
type Option func(*Pipeline) error

// WithLogger sets the logger
func WithLogger(log model.Logger) Option {
	return func(p *Pipeline) error {
		p.log = log
		return nil
	}
}

// WithObserver receives stage, status, progress and outcome notifications
func WithObserver(o model.Observer) Option {
	return func(p *Pipeline) error {
		if o == nil {
			return fmt.Errorf("%w: observer is required", model.ErrInvalidArgument)
		}

		p.observer = o
		return nil
	}
}

// WithTempRoot sets the directory private download and extraction directories are created in
func WithTempRoot(root string) Option {
	return func(p *Pipeline) error {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("%w: temporary root is required", model.ErrInvalidArgument)
		}

		p.tempRoot = root
		return nil
	}
}

// WithFreeSpaceMargin sets the safety margin required on top of the estimated extracted size,
// a negative margin disables the free space check
func WithFreeSpaceMargin(margin int64) Option {
	return func(p *Pipeline) error {
		p.margin = margin
		return nil
	}
}

// WithChecksum verifies the downloaded archive against a hex encoded sha256 sum before extraction
func WithChecksum(sum string) Option {
	return func(p *Pipeline) error {
		parsed, err := ParseChecksum(sum)
		if err != nil {
			return err
		}

		p.checksum = parsed
		return nil
	}
}

// ParseChecksum normalizes a hex encoded sha256 sum to lower case
func ParseChecksum(sum string) (string, error) {
	sum = strings.ToLower(strings.TrimSpace(sum))
	if _, err := hex.DecodeString(sum); err != nil || len(sum) != 64 {
		return "", fmt.Errorf("%w: invalid sha256 checksum %q", model.ErrInvalidArgument, sum)
	}

	return sum, nil
}

// New creates a pipeline installing archives fetched with downloader using handler
func New(downloader model.Downloader, handler model.ContentHandler, opts ...Option) (*Pipeline, error) {
	if downloader == nil {
		return nil, fmt.Errorf("%w: downloader is required", model.ErrInvalidArgument)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: content handler is required", model.ErrInvalidArgument)
	}

	p := &Pipeline{
		downloader: downloader,
		handler:    handler,
		observer:   model.NopObserver{},
		log:        model.NopLogger{},
		tempRoot:   os.TempDir(),
		margin:     iu.FreeSpaceMargin,
		stage:      model.StageIdle,
	}

	for _, opt := range opts {
		err := opt(p)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Stage is the current or last stage reached
func (p *Pipeline) Stage() model.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stage
}

func (p *Pipeline) setStage(stage model.Stage) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()

	p.log.Debug("Pipeline stage changed", "stage", stage.String())
	p.observer.StageChanged(stage)
}

// Run downloads url as fileName, validates and extracts it and hands the extracted tree to the
// content handler. Temporary directories are always removed. The observer receives exactly one
// of Completed, Failed or Canceled
func (p *Pipeline) Run(ctx context.Context, url string, fileName string) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("%w: pipeline is already running", model.ErrInvalidArgument)
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	start := time.Now()
	dirs := &tempDirs{}

	err := p.run(ctx, url, fileName, dirs)
	lastStage := p.Stage()

	p.setStage(model.StageCleaningUp)
	dirs.remove(p.log)

	return p.finish(err, lastStage, start)
}

type tempDirs struct {
	paths []string
}

func (t *tempDirs) create(root string, prefix string) (string, error) {
	dir, err := TempDir(root, prefix)
	if err != nil {
		return "", err
	}

	t.paths = append(t.paths, dir)

	return dir, nil
}

func (t *tempDirs) remove(log model.Logger) {
	for _, dir := range t.paths {
		err := os.RemoveAll(dir)
		if err != nil {
			log.Warn("Could not remove temporary directory", "dir", dir, "error", err)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, url string, fileName string, dirs *tempDirs) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: url is required", model.ErrInvalidArgument)
	}

	fileName = ArchiveName(url, fileName)
	extractor, err := archive.NewExtractor(fileName)
	if err != nil {
		return err
	}

	p.setStage(model.StageDownloading)
	p.observer.Progress(0)

	downloadDir, err := dirs.create(p.tempRoot, downloadPrefix)
	if err != nil {
		return err
	}

	archivePath, err := Download(ctx, p.downloader, downloadDir, url, fileName, p.observer)
	if err != nil {
		return err
	}

	p.setStage(model.StageValidating)
	p.observer.Status("Validating archive...")

	err = archive.Validate(archivePath)
	if err != nil {
		return err
	}

	if p.checksum != "" {
		err = VerifyChecksum(ctx, archivePath, p.checksum)
		if err != nil {
			return err
		}
	}

	stat, err := os.Stat(archivePath)
	if err == nil {
		p.log.Info("Archive downloaded", "file", filepath.Base(archivePath), "size", humanize.IBytes(uint64(stat.Size())))
	}

	extractDir, err := dirs.create(p.tempRoot, extractPrefix)
	if err != nil {
		return err
	}

	err = CheckSpace(ctx, archivePath, extractDir, p.margin)
	if err != nil {
		return err
	}

	p.setStage(model.StageExtracting)

	err = Extract(ctx, extractor, archivePath, extractDir, p.observer)
	if err != nil {
		return err
	}

	p.setStage(model.StageInstalling)

	err = ctx.Err()
	if err != nil {
		return model.CanceledError(err)
	}

	err = p.handler.Handle(ctx, extractDir, p.observer)
	if err != nil {
		return handlerError(ctx, err)
	}

	return nil
}

func (p *Pipeline) finish(err error, lastStage model.Stage, start time.Time) error {
	if err != nil && !model.IsCanceled(err) && ctxError(err) {
		err = model.CanceledError(err)
	}

	switch {
	case err == nil:
		p.setStage(model.StageDone)
		p.log.Info("Archive installed", "duration", time.Since(start).Round(time.Millisecond))
		p.observer.Progress(1)
		p.observer.Completed()
		observeOutcome("done", lastStage, start)

	case model.IsCanceled(err):
		p.setStage(model.StageCanceled)
		p.log.Warn("Archive install canceled", "stage", lastStage.String())
		p.observer.Canceled()
		observeOutcome("canceled", lastStage, start)

	default:
		p.setStage(model.StageFailed)
		p.log.Error("Archive install failed", "stage", lastStage.String(), "error", err)
		p.observer.Failed(err)
		observeOutcome("failed", lastStage, start)
	}

	return err
}

func observeOutcome(outcome string, stage model.Stage, start time.Time) {
	metrics.PipelineOutcomeCount.WithLabelValues(outcome, stage.String()).Inc()
	metrics.PipelineRunTime.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func ctxError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func handlerError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return model.CanceledError(ctx.Err())
	case model.IsCanceled(err), errors.Is(err, model.ErrContentHandler):
		return err
	default:
		return fmt.Errorf("%w: %w", model.ErrContentHandler, err)
	}
}

// ArchiveName is fileName when set, otherwise the last element of the url path
func ArchiveName(url string, fileName string) string {
	if strings.TrimSpace(fileName) != "" {
		return fileName
	}

	uri, err := neturl.Parse(url)
	if err != nil {
		return ""
	}

	name := path.Base(uri.Path)
	if name == "." || name == "/" {
		return ""
	}

	return name
}

// VerifyChecksum compares the sha256 sum of archivePath with sum
func VerifyChecksum(ctx context.Context, archivePath string, sum string) error {
	ok, actual, err := iu.Sha256Matches(ctx, archivePath, sum)
	if err != nil {
		if ctx.Err() != nil {
			return model.CanceledError(ctx.Err())
		}
		return fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}

	if !ok {
		return fmt.Errorf("%w: %s has sha256 %s, expected %s", model.ErrChecksumMismatch, filepath.Base(archivePath), actual, sum)
	}

	return nil
}

// Download fetches url into downloadDir with download progress scaled into [0,0.5] on reporter
func Download(ctx context.Context, downloader model.Downloader, downloadDir string, url string, fileName string, reporter model.Reporter) (string, error) {
	reporter.Status(fmt.Sprintf("Downloading: %s", iu.RedactUrlString(url)))

	archivePath, err := downloader.Download(ctx, url, downloadDir, fileName, func(_ string, fraction float64, _ int64, _ int64) {
		reporter.Progress(clamp(fraction) * 0.5)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", model.CanceledError(ctx.Err())
		}
		return "", err
	}

	if archivePath == "" {
		archivePath = filepath.Join(downloadDir, fileName)
	}

	reporter.Progress(0.5)
	reporter.Status(fmt.Sprintf("Downloaded: %s", filepath.Base(archivePath)))

	return archivePath, nil
}

// Extract runs extractor with its progress scaled into [0.5,1] on reporter
func Extract(ctx context.Context, extractor archive.Extractor, archivePath string, destDir string, reporter model.Reporter) error {
	start := time.Now()

	reporter.Status(fmt.Sprintf("Extracting: %s", filepath.Base(archivePath)))

	err := extractor.Extract(ctx, archivePath, destDir, func(_ string, done int, total int) {
		reporter.Progress(0.5 + 0.5*ExtractFraction(done, total))
	})
	if err != nil {
		if ctx.Err() != nil && !model.IsCanceled(err) {
			return model.CanceledError(ctx.Err())
		}
		return err
	}

	metrics.ExtractTime.WithLabelValues(formatLabel(archivePath)).Observe(time.Since(start).Seconds())

	reporter.Progress(1)
	reporter.Status("Extracted")

	return nil
}

// ExtractFraction converts entry counts to a fraction, unknown totals creep towards 0.95 as
// entries arrive
func ExtractFraction(done int, total int) float64 {
	if total > 0 {
		return clamp(float64(done) / float64(total))
	}

	return min(float64(done)/200, 0.95)
}

// CheckSpace verifies the filesystem holding dir can take the extracted archive plus margin, a
// negative margin or an unknown extracted size skips the check
func CheckSpace(ctx context.Context, archivePath string, dir string, margin int64) error {
	if margin < 0 {
		return nil
	}

	required := archive.EstimateExtractedSize(archivePath)
	if required <= 0 {
		return nil
	}

	ok, msg := iu.CheckFreeSpace(ctx, dir, required, margin)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrInsufficientSpace, msg)
	}

	return nil
}

func formatLabel(archivePath string) string {
	switch {
	case iu.FileHasSuffix(archivePath, ".tar.gz", ".tgz"):
		return "tar.gz"
	case iu.FileHasSuffix(archivePath, ".tar.bz2"):
		return "tar.bz2"
	case iu.FileHasSuffix(archivePath, ".zip", ".nupkg"):
		return "zip"
	default:
		return "unknown"
	}
}

func clamp(v float64) float64 {
	return max(0, min(v, 1))
}
