// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/choria-io/archinstall/model"
)

// SanitizeEntryPath normalizes separators to /, strips leading slashes and rejects names
// holding a .. segment
func SanitizeEntryPath(name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")
	clean = strings.TrimLeft(clean, "/")

	for _, segment := range strings.Split(clean, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: entry contains invalid path: %s", model.ErrMalformedArchive, name)
		}
	}

	return clean, nil
}

// entryTarget resolves name below destDir and guarantees the result does not leave destDir
func entryTarget(destDir string, name string) (string, error) {
	clean, err := SanitizeEntryPath(name)
	if err != nil {
		return "", err
	}

	clean = path.Clean("/" + clean)[1:]
	if clean == "" {
		return destDir, nil
	}

	target := filepath.Join(destDir, filepath.FromSlash(clean))

	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry contains invalid path: %s", model.ErrMalformedArchive, name)
	}

	return target, nil
}
