// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// SupportedFormats lists the archive file names understood by NewExtractor
const SupportedFormats = ".tar.bz2, .tar.gz, .tgz, .zip"

// Extractor materializes an archive file into a destination directory
type Extractor interface {
	// Extract writes every entry of archivePath below destDir, an existing destDir is removed
	// first. Progress is called after each entry, total is model.UnknownTotal for stream formats
	Extract(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc) error
}

// NewExtractor selects an extractor by the suffix of name, case-insensitively
func NewExtractor(name string) (Extractor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: archive file name is required", model.ErrInvalidArgument)
	}

	switch {
	case iu.FileHasSuffix(name, ".tar.gz", ".tgz"):
		return &TarGzExtractor{}, nil
	case iu.FileHasSuffix(name, ".tar.bz2"):
		return &TarBz2Extractor{}, nil
	case iu.FileHasSuffix(name, ".zip", ".nupkg"):
		return &ZipExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s. Supported formats: %s", model.ErrNotSupported, name, SupportedFormats)
	}
}

// Extract selects the extractor for archivePath and runs it
func Extract(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc) error {
	extractor, err := NewExtractor(archivePath)
	if err != nil {
		return err
	}

	return extractor.Extract(ctx, archivePath, destDir, progress)
}

func checkArchive(archivePath string) error {
	if strings.TrimSpace(archivePath) == "" {
		return fmt.Errorf("%w: archive path is required", model.ErrInvalidArgument)
	}

	stat, err := os.Stat(archivePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: archive %s not found", model.ErrNotFound, archivePath)
	}
	if err != nil {
		return err
	}

	if stat.IsDir() {
		return fmt.Errorf("%w: archive %s is a directory", model.ErrInvalidArgument, archivePath)
	}

	return nil
}

// prepareDestination replaces destDir with an empty directory, extraction never merges into existing content
func prepareDestination(destDir string) error {
	if strings.TrimSpace(destDir) == "" {
		return fmt.Errorf("%w: destination directory is required", model.ErrInvalidArgument)
	}

	abs, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) == abs {
		return fmt.Errorf("%w: refusing to extract into %s", model.ErrInvalidArgument, abs)
	}

	return iu.EnsureEmptyDirectory(destDir)
}
