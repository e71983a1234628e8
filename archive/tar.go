// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

// decompressor wraps the raw archive file in the stream holding the tar blocks
type decompressor func(r io.Reader) (io.ReadCloser, error)

// streamReader marks every read failure other than EOF as a malformed archive, decompressors
// report corrupt input through their read errors
type streamReader struct {
	r io.Reader
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", model.ErrMalformedArchive, err)
	}

	return n, err
}

func extractTarFile(ctx context.Context, archivePath string, destDir string, progress model.ExtractProgressFunc, decompress decompressor) error {
	err := checkArchive(archivePath)
	if err != nil {
		return err
	}

	err = prepareDestination(destDir)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	stream, err := decompress(f)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrMalformedArchive, err)
	}
	defer stream.Close()

	_, err = WalkTar(ctx, stream, destDir, progress)
	if err != nil {
		return err
	}

	return drainStream(ctx, stream)
}

// drainStream reads whatever follows the end of the tar stream so the decompressor reaches its
// trailer and verifies the checksum of the compressed data
func drainStream(ctx context.Context, stream io.Reader) error {
	var (
		r   = &streamReader{r: stream}
		buf = make([]byte, iu.CopyBufferSize)
	)

	for {
		err := ctx.Err()
		if err != nil {
			return model.CanceledError(err)
		}

		_, err = r.Read(buf)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
	}
}

// WalkTar reads tar blocks from stream and materializes every entry below destDir. It stops at
// the first all-zero block or a clean end of stream and returns the number of entries written
func WalkTar(ctx context.Context, stream io.Reader, destDir string, progress model.ExtractProgressFunc) (int, error) {
	var (
		r     = &streamReader{r: stream}
		block = make([]byte, BlockSize)
		buf   = make([]byte, iu.CopyBufferSize)
		done  int
	)

	for {
		err := ctx.Err()
		if err != nil {
			return done, model.CanceledError(err)
		}

		n, err := io.ReadFull(r, block)
		switch {
		case n == 0 && errors.Is(err, io.EOF):
			return done, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return done, fmt.Errorf("%w: invalid tar header", model.ErrMalformedArchive)
		case err != nil:
			return done, err
		}

		hdr, err := ParseHeader(block)
		if errors.Is(err, ErrEndOfArchive) {
			return done, nil
		}
		if err != nil {
			return done, err
		}

		target, err := entryTarget(destDir, hdr.Name)
		if err != nil {
			return done, err
		}

		if hdr.IsDirectory() {
			err = os.MkdirAll(target, 0755)
			if err != nil {
				return done, err
			}
		} else {
			err = os.MkdirAll(filepath.Dir(target), 0755)
			if err != nil {
				return done, err
			}

			err = writeTarEntry(ctx, r, target, hdr.Size, buf)
			if err != nil {
				return done, err
			}

			err = skipPadding(ctx, r, hdr.Size, block)
			if err != nil {
				return done, err
			}
		}

		done++
		if progress != nil {
			progress(hdr.Name, done, model.UnknownTotal)
		}
	}
}

func writeTarEntry(ctx context.Context, r io.Reader, target string, size int64, buf []byte) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	err = iu.CopyN(ctx, out, r, size, buf)
	if err != nil {
		out.Close()
		return copyError(ctx, err, "unexpected end of tar stream")
	}

	return out.Close()
}

func skipPadding(ctx context.Context, r io.Reader, size int64, block []byte) error {
	pad := Padding(size)
	if pad == 0 {
		return nil
	}

	err := ctx.Err()
	if err != nil {
		return model.CanceledError(err)
	}

	_, err = io.ReadFull(r, block[:pad])
	if err != nil {
		return copyError(ctx, err, "unexpected end of tar stream (padding)")
	}

	return nil
}

// copyError classifies a failure while streaming entry data
func copyError(ctx context.Context, err error, truncated string) error {
	switch {
	case ctx.Err() != nil:
		return model.CanceledError(ctx.Err())
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %s", model.ErrMalformedArchive, truncated)
	default:
		return err
	}
}
