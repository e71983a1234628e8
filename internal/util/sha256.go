// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Sha256HashFile computes the sha256 sum of a file and returns the hex encoded result
func Sha256HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	err = CopyN(ctx, hasher, f, stat.Size(), nil)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Sha256Matches checks the file at path against a hex encoded sum, returning the actual sum
func Sha256Matches(ctx context.Context, path string, expected string) (bool, string, error) {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if len(expected) != sha256.Size*2 {
		return false, "", fmt.Errorf("invalid sha256 checksum %q", expected)
	}

	sum, err := Sha256HashFile(ctx, path)
	if err != nil {
		return false, "", err
	}

	return sum == expected, sum, nil
}
