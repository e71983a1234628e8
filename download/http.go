// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package download fetches remote archives over HTTP with retries and throttled progress reporting
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/choria-io/archinstall/internal/backoff"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/metrics"
	"github.com/choria-io/archinstall/model"
)

const (
	// DefaultRetries is how many times a transient failure is retried
	DefaultRetries = 3

	// DefaultProgressInterval is the minimum time between progress reports
	DefaultProgressInterval = 250 * time.Millisecond
)

// HTTP downloads archives from http and https URLs
type HTTP struct {
	client   *http.Client
	log      model.Logger
	retries  int
	policy   backoff.Policy
	headers  http.Header
	username string
	password string
	interval time.Duration
}

var _ model.Downloader = (*HTTP)(nil)

// Option configures the HTTP downloader
type Option func(*HTTP) error

// WithLogger sets the logger
func WithLogger(log model.Logger) Option {
	return func(h *HTTP) error {
		h.log = log
		return nil
	}
}

// WithClient uses a specific http client
func WithClient(client *http.Client) Option {
	return func(h *HTTP) error {
		if client == nil {
			return fmt.Errorf("%w: client is required", model.ErrInvalidArgument)
		}

		h.client = client
		return nil
	}
}

// WithRetries sets how many times transient failures are retried, 0 disables retries
func WithRetries(retries int) Option {
	return func(h *HTTP) error {
		if retries < 0 {
			return fmt.Errorf("%w: retries can not be negative", model.ErrInvalidArgument)
		}

		h.retries = retries
		return nil
	}
}

// WithBackoff sets the delay policy between retries
func WithBackoff(policy backoff.Policy) Option {
	return func(h *HTTP) error {
		h.policy = policy
		return nil
	}
}

// WithHeader adds a header to every request
func WithHeader(key string, value string) Option {
	return func(h *HTTP) error {
		h.headers.Add(key, value)
		return nil
	}
}

// WithBasicAuth sets credentials used for every request
func WithBasicAuth(username string, password string) Option {
	return func(h *HTTP) error {
		h.username = username
		h.password = password
		return nil
	}
}

// WithProgressInterval sets the minimum time between progress reports
func WithProgressInterval(interval time.Duration) Option {
	return func(h *HTTP) error {
		h.interval = interval
		return nil
	}
}

// New creates a HTTP downloader
func New(opts ...Option) (*HTTP, error) {
	h := &HTTP{
		client:   http.DefaultClient,
		log:      model.NopLogger{},
		retries:  DefaultRetries,
		policy:   backoff.FiveSec,
		headers:  http.Header{},
		interval: DefaultProgressInterval,
	}

	for _, opt := range opts {
		err := opt(h)
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// retryableError marks failures that might succeed when tried again
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Download fetches rawURL into destDir. When fileName is empty the last path element of the URL
// is used. Partially written files are removed on failure
func (h *HTTP) Download(ctx context.Context, rawURL string, destDir string, fileName string, progress model.DownloadProgressFunc) (string, error) {
	uri, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL %q: %w", model.ErrInvalidArgument, iu.RedactUrlString(rawURL), err)
	}

	if uri.Scheme != "http" && uri.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported URL scheme %q", model.ErrInvalidArgument, uri.Scheme)
	}

	if strings.TrimSpace(destDir) == "" {
		return "", fmt.Errorf("%w: destination directory is required", model.ErrInvalidArgument)
	}

	if fileName == "" {
		fileName = path.Base(uri.Path)
	}
	fileName = filepath.Base(fileName)
	if fileName == "." || fileName == "/" || fileName == string(filepath.Separator) {
		return "", fmt.Errorf("%w: could not determine a file name for %s", model.ErrInvalidArgument, iu.RedactUrlCredentials(uri))
	}

	if h.username != "" {
		uri.User = url.UserPassword(h.username, h.password)
	}

	err = os.MkdirAll(destDir, 0755)
	if err != nil {
		return "", err
	}

	var (
		target   = filepath.Join(destDir, fileName)
		redacted = iu.RedactUrlCredentials(uri)
		log      = h.log.With("url", redacted)
		host     = uri.Host
		start    = time.Now()
		written  int64
	)

	log.Info("Downloading", "target", target)

	for try := 1; ; try++ {
		written, err = h.fetch(ctx, uri, target, redacted, progress)
		if err == nil {
			break
		}

		os.Remove(target)

		if ctx.Err() != nil {
			metrics.DownloadCount.WithLabelValues(host, "canceled").Inc()
			return "", model.CanceledError(ctx.Err())
		}

		var rerr *retryableError
		if !errors.As(err, &rerr) || try > h.retries {
			metrics.DownloadCount.WithLabelValues(host, "failed").Inc()
			log.Error("Download failed", "error", err, "tries", try)
			return "", err
		}

		log.Warn("Download failed, retrying", "error", err, "try", try)
		metrics.DownloadRetryCount.WithLabelValues(host).Inc()

		err = h.policy.TrySleep(ctx, try)
		if err != nil {
			metrics.DownloadCount.WithLabelValues(host, "canceled").Inc()
			return "", model.CanceledError(err)
		}
	}

	metrics.DownloadCount.WithLabelValues(host, "success").Inc()
	metrics.DownloadTime.WithLabelValues(host).Observe(time.Since(start).Seconds())
	metrics.DownloadBytes.WithLabelValues(host).Add(float64(written))

	log.Info("Archive downloaded", "size", humanize.IBytes(uint64(written)), "duration", time.Since(start).Round(time.Millisecond))

	return target, nil
}

func (h *HTTP) fetch(ctx context.Context, uri *url.URL, target string, display string, progress model.DownloadProgressFunc) (int64, error) {
	resp, cancel, err := iu.HttpGetResponse(ctx, h.client, uri.String(), 0, h.headers)
	if err != nil {
		return 0, &retryableError{fmt.Errorf("%w: %w", model.ErrDownload, redactError(err, uri))}
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("%w: HTTP request failed with status %d: %s", model.ErrDownload, resp.StatusCode, resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return 0, &retryableError{err}
		}

		return 0, err
	}

	total := resp.ContentLength
	if total < 0 {
		total = model.UnknownTotal
	}

	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}

	body := &countingReader{
		r:        resp.Body,
		progress: newThrottle(progress, display, total, h.interval),
	}

	copied, err := io.CopyBuffer(out, body, make([]byte, iu.CopyBufferSize))
	if err != nil {
		out.Close()

		if body.err != nil {
			return copied, &retryableError{fmt.Errorf("%w: %w", model.ErrDownload, redactError(body.err, uri))}
		}

		return copied, err
	}

	err = out.Close()
	if err != nil {
		return copied, err
	}

	if total > 0 && copied != total {
		return copied, &retryableError{fmt.Errorf("%w: received %d bytes of %d", model.ErrDownload, copied, total)}
	}

	body.progress.done(copied)

	return copied, nil
}

// redactError replaces the full URL with credentials in errors from net/http
func redactError(err error, uri *url.URL) error {
	if uri.User == nil {
		return err
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: iu.RedactUrlCredentials(uri), Err: uerr.Err}
	}

	return err
}

// countingReader tracks bytes read and remembers read failures so they can be told apart from
// failures writing the local file
type countingReader struct {
	r        io.Reader
	n        int64
	err      error
	progress *throttle
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		c.err = err
	}

	c.progress.report(c.n)

	return n, err
}

// throttle limits how often progress is reported, the final report is always delivered
type throttle struct {
	fn       model.DownloadProgressFunc
	url      string
	total    int64
	interval time.Duration
	last     time.Time
}

func newThrottle(fn model.DownloadProgressFunc, url string, total int64, interval time.Duration) *throttle {
	return &throttle{fn: fn, url: url, total: total, interval: interval}
}

func (t *throttle) report(n int64) {
	if t.fn == nil {
		return
	}

	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return
	}
	t.last = now

	t.fn(t.url, t.fraction(n), n, t.total)
}

func (t *throttle) done(n int64) {
	if t.fn == nil {
		return
	}

	t.fn(t.url, 1, n, t.total)
}

func (t *throttle) fraction(n int64) float64 {
	if t.total <= 0 {
		return 0
	}

	f := float64(n) / float64(t.total)
	if f > 1 {
		return 1
	}

	return f
}
