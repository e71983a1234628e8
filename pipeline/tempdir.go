// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/choria-io/archinstall/model"
)

// TempDir creates an empty directory named <prefix>-<ksuid> below root, concurrent callers
// always receive distinct directories
func TempDir(root string, prefix string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("%w: temporary root is required", model.ErrInvalidArgument)
	}

	dir := filepath.Join(root, fmt.Sprintf("%s-%s", prefix, ksuid.New().String()))

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return "", err
	}

	return dir, nil
}
