// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"compress/bzip2"
	"context"
	"io"

	"github.com/choria-io/archinstall/model"
)

// TarBz2Extractor extracts .tar.bz2 archives
type TarBz2Extractor struct{}

var _ Extractor = (*TarBz2Extractor)(nil)

func (e *TarBz2Extractor) Extract(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc) error {
	return extractTarFile(ctx, archivePath, destDir, progress, func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	})
}
