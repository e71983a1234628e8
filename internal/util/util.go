// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/term"
)

// CopyBufferSize is the size of buffers used when streaming file content
const CopyBufferSize = 64 * 1024

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func IsDirectory(path string) bool {
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if stat == nil {
		return false
	}

	return stat.IsDir()
}

// FileHasSuffix checks, case-insensitively, if name ends in any of the suffixes
func FileHasSuffix(name string, suffixes ...string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}

	return false
}

// IsTerminal determines if stdout is a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RedactUrlCredentials returns the url as a string with any password replaced
func RedactUrlCredentials(u *url.URL) string {
	if u == nil {
		return ""
	}

	return u.Redacted()
}

// RedactUrlString parses raw and redacts credentials, unparsable urls are returned as a placeholder
func RedactUrlString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	return RedactUrlCredentials(u)
}

// CopyN copies exactly n bytes from src to dst using buf, checking ctx between every chunk so
// that very large files can be interrupted. A short source is reported as io.ErrUnexpectedEOF
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte) error {
	if len(buf) == 0 {
		buf = make([]byte, CopyBufferSize)
	}

	remaining := n
	for remaining > 0 {
		err := ctx.Err()
		if err != nil {
			return err
		}

		chunk := buf
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		read, err := src.Read(chunk)
		if read > 0 {
			_, werr := dst.Write(chunk[:read])
			if werr != nil {
				return werr
			}
			remaining -= int64(read)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if remaining > 0 {
					return io.ErrUnexpectedEOF
				}
				return nil
			}
			return err
		}
	}

	return nil
}

// CopyFile copies the regular file src to dst, replacing dst when it exists
func CopyFile(ctx context.Context, src string, dst string, buf []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, stat.Mode().Perm())
	if err != nil {
		return err
	}

	err = CopyN(ctx, out, in, stat.Size(), buf)
	if err != nil {
		out.Close()
		return fmt.Errorf("could not copy %s: %w", src, err)
	}

	return out.Close()
}

// EnsureEmptyDirectory removes path if it exists and creates it again empty
func EnsureEmptyDirectory(path string) error {
	err := os.RemoveAll(path)
	if err != nil {
		return err
	}

	return os.MkdirAll(path, 0755)
}
