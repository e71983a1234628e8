// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"io"
	"os"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// EstimateExtractedSize guesses how many bytes extracting archivePath will write, it returns
// model.UnknownTotal when the format gives no cheap answer
func EstimateExtractedSize(archivePath string) int64 {
	switch {
	case iu.FileHasSuffix(archivePath, ".zip", ".nupkg"):
		return estimateZip(archivePath)
	case iu.FileHasSuffix(archivePath, ".tar.gz", ".tgz"):
		return estimateGzip(archivePath)
	default:
		return model.UnknownTotal
	}
}

func estimateZip(archivePath string) int64 {
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return model.UnknownTotal
	}
	defer zr.Close()

	var total uint64
	for _, f := range zr.File {
		total += f.UncompressedSize64
	}

	return int64(total)
}

// estimateGzip reads the ISIZE trailer, the uncompressed size modulo 2^32 of the last member.
// Values smaller than the compressed file are treated as wrapped and unknown
func estimateGzip(archivePath string) int64 {
	f, err := os.Open(archivePath)
	if err != nil {
		return model.UnknownTotal
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.Size() < 18 {
		return model.UnknownTotal
	}

	trailer := make([]byte, 4)
	_, err = f.ReadAt(trailer, stat.Size()-4)
	if err != nil && err != io.EOF {
		return model.UnknownTotal
	}

	size := int64(binary.LittleEndian.Uint32(trailer))
	if size < stat.Size() {
		return model.UnknownTotal
	}

	return size
}
