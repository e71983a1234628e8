// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"io"

	"github.com/klauspost/pgzip"

	"github.com/choria-io/archinstall/model"
)

// TarGzExtractor extracts .tar.gz and .tgz archives
type TarGzExtractor struct{}

var _ Extractor = (*TarGzExtractor)(nil)

func (e *TarGzExtractor) Extract(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc) error {
	return extractTarFile(ctx, archivePath, destDir, progress, func(r io.Reader) (io.ReadCloser, error) {
		return pgzip.NewReader(r)
	})
}
