// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/choria-io/archinstall/model"
)

// Format is an archive container format identified by its leading bytes
type Format int

const (
	FormatUnknown Format = iota
	FormatGzip
	FormatBzip2
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatBzip2:
		return "bzip2"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

const magicSize = 4

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{'B', 'Z', 'h'}
	zipMagic   = []byte{'P', 'K', 0x03, 0x04}
)

// Sniff identifies the format from the leading bytes of a file
func Sniff(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(header, bzip2Magic):
		return FormatBzip2
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// Validate checks the leading bytes of a downloaded file before any decompression is attempted.
// A nil result means the file looks like a supported archive, otherwise the error describes the
// problem, most importantly an HTML error page served in place of the archive
func Validate(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: downloaded file not found: '%s'", model.ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	if stat.Size() == 0 {
		return fmt.Errorf("%w: downloaded file is empty (0 bytes)", model.ErrEmptyArchive)
	}

	header := make([]byte, magicSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	header = header[:n]

	if Sniff(header) != FormatUnknown {
		return nil
	}

	if header[0] == '<' {
		return fmt.Errorf("%w: downloaded file appears to be an HTML page, not an archive. Check that the URL points to a direct download link", model.ErrNotSupported)
	}

	return fmt.Errorf("%w: downloaded file does not look like a supported archive (unexpected header bytes % x). Supported formats: %s", model.ErrNotSupported, header, SupportedFormats)
}
