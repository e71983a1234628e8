// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// ZipExtractor extracts .zip archives and zip based packages like .nupkg
type ZipExtractor struct{}

var _ Extractor = (*ZipExtractor)(nil)

func (e *ZipExtractor) Extract(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc) error {
	err := checkArchive(archivePath)
	if err != nil {
		return err
	}

	err = prepareDestination(destDir)
	if err != nil {
		return err
	}

	// entry names are checked individually by entryTarget
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("%w: %w", model.ErrMalformedArchive, err)
	}
	defer zr.Close()

	total := len(zr.File)
	buf := make([]byte, iu.CopyBufferSize)

	for i, f := range zr.File {
		err = ctx.Err()
		if err != nil {
			return model.CanceledError(err)
		}

		target, err := entryTarget(destDir, f.Name)
		if err != nil {
			return err
		}

		if isZipDirectory(f) {
			err = os.MkdirAll(target, 0755)
		} else {
			err = writeZipEntry(ctx, f, target, buf)
		}
		if err != nil {
			return err
		}

		if progress != nil {
			progress(f.Name, i+1, total)
		}
	}

	return nil
}

// isZipDirectory treats entries with an empty leaf name as directories
func isZipDirectory(f *zip.File) bool {
	name := strings.ReplaceAll(f.Name, `\`, "/")
	return strings.HasSuffix(name, "/") || f.FileInfo().IsDir()
}

func writeZipEntry(ctx context.Context, f *zip.File, target string, buf []byte) error {
	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrMalformedArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	err = iu.CopyN(ctx, out, &streamReader{r: rc}, int64(f.UncompressedSize64), buf)
	if err != nil {
		out.Close()
		return copyError(ctx, err, fmt.Sprintf("unexpected end of zip entry %s", f.Name))
	}

	// archive/zip only verifies the CRC32 once the entry is read to EOF
	extra, err := io.Copy(io.Discard, rc)
	switch {
	case err != nil:
		out.Close()
		return fmt.Errorf("%w: %s: %w", model.ErrMalformedArchive, f.Name, err)
	case extra > 0:
		out.Close()
		return fmt.Errorf("%w: %s is larger than its declared size", model.ErrMalformedArchive, f.Name)
	}

	return out.Close()
}
