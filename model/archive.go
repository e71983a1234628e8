// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
)

//go:generate mockgen -write_generate_directive -source archive.go -destination modelmocks/archive.go -package modelmocks
//go:generate mockgen -write_generate_directive -source logger.go -destination modelmocks/logger.go -package modelmocks

// CompleteMarker is the file written last into a populated archive cache, content handlers never copy it
const CompleteMarker = ".archinstall-complete"

// UnknownTotal is reported as the total when the number of entries or bytes is not known up front
const UnknownTotal = -1

// Entry is a single file or directory record read from an archive
type Entry struct {
	Name        string
	Size        int64
	IsDirectory bool
}

// ExtractProgressFunc receives the name of the entry just written, how many entries were
// written so far and the total number of entries or UnknownTotal
type ExtractProgressFunc func(entry string, done int, total int)

// DownloadProgressFunc receives the url being fetched, the completed fraction in [0,1], bytes
// received so far and the total size or UnknownTotal
type DownloadProgressFunc func(url string, fraction float64, downloaded int64, total int64)

// Downloader fetches url into destDir/fileName and returns the full path of the written file
type Downloader interface {
	Download(ctx context.Context, url string, destDir string, fileName string, progress DownloadProgressFunc) (string, error)
}

// Reporter receives status text and progress from a content handler
type Reporter interface {
	Status(msg string)
	Progress(fraction float64)
}

// ContentHandler decides which extracted files matter and places them in their final destination
type ContentHandler interface {
	Handle(ctx context.Context, extractedRoot string, reporter Reporter) error
}

// ContentHandlerFunc adapts a function to the ContentHandler interface
type ContentHandlerFunc func(ctx context.Context, extractedRoot string, reporter Reporter) error

func (f ContentHandlerFunc) Handle(ctx context.Context, extractedRoot string, reporter Reporter) error {
	return f(ctx, extractedRoot, reporter)
}
