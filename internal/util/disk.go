// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
)

// FreeSpaceMargin is the default safety margin added to free space requirements
const FreeSpaceMargin = 50 * 1024 * 1024

// AvailableBytes reports the free bytes on the filesystem holding path, walking up to the
// nearest existing parent. Returns -1 when it cannot be determined
func AvailableBytes(ctx context.Context, path string) int64 {
	dir := path
	for dir != "" && !FileExists(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if dir == "" {
		dir = os.TempDir()
	}

	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil || usage == nil {
		return -1
	}

	return int64(usage.Free)
}

// CheckFreeSpace reports whether the filesystem holding path has required bytes plus margin
// available along with a description of the shortfall. Unknown availability or requirement is
// treated as sufficient
func CheckFreeSpace(ctx context.Context, path string, required int64, margin int64) (bool, string) {
	if required <= 0 {
		return true, ""
	}

	available := AvailableBytes(ctx, path)
	if available < 0 {
		return true, ""
	}

	needed := required + max(margin, 0)
	if available >= needed {
		return true, ""
	}

	return false, fmt.Sprintf("available %s, required %s including a %s safety margin", humanize.IBytes(uint64(available)), humanize.IBytes(uint64(needed)), humanize.IBytes(uint64(max(margin, 0))))
}
