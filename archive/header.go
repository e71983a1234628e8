// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/choria-io/archinstall/model"
)

// BlockSize is the size of tar header and data blocks
const BlockSize = 512

const (
	nameOffset     = 0
	nameLength     = 100
	sizeOffset     = 124
	sizeLength     = 12
	typeFlagOffset = 156
	prefixOffset   = 345
	prefixLength   = 155

	typeRegular   = '0'
	typeDirectory = '5'
)

// ErrEndOfArchive is returned by ParseHeader for the all-zero block that ends a tar stream
var ErrEndOfArchive = errors.New("end of archive")

// Header is the decoded form of a single POSIX or ustar header block
type Header struct {
	Name     string
	Size     int64
	TypeFlag byte
}

// IsDirectory indicates the entry is a directory, no data blocks follow a directory header
func (h *Header) IsDirectory() bool {
	return h.TypeFlag == typeDirectory || strings.HasSuffix(h.Name, "/")
}

// Entry converts the header to the archive entry it describes
func (h *Header) Entry() model.Entry {
	return model.Entry{Name: h.Name, Size: h.Size, IsDirectory: h.IsDirectory()}
}

// ParseHeader decodes one header block. The ustar prefix, when present, is joined before the
// name. ErrEndOfArchive is returned for an all-zero block
func ParseHeader(block []byte) (*Header, error) {
	if len(block) != BlockSize {
		return nil, fmt.Errorf("%w: invalid tar header of %d bytes", model.ErrMalformedArchive, len(block))
	}

	if isZeroBlock(block) {
		return nil, ErrEndOfArchive
	}

	name := cString(block[nameOffset : nameOffset+nameLength])
	prefix := cString(block[prefixOffset : prefixOffset+prefixLength])
	if prefix != "" {
		name = prefix + "/" + name
	}

	if name == "" {
		return nil, fmt.Errorf("%w: tar entry has empty name", model.ErrMalformedArchive)
	}

	flag := block[typeFlagOffset]
	if flag == 0 {
		flag = typeRegular
	}

	return &Header{
		Name:     name,
		Size:     parseOctal(cString(block[sizeOffset : sizeOffset+sizeLength])),
		TypeFlag: flag,
	}, nil
}

// Padding is the number of bytes following an entry of size bytes to reach the next block boundary
func Padding(size int64) int64 {
	return (BlockSize - size%BlockSize) % BlockSize
}

func isZeroBlock(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}

	return true
}

// cString reads a NUL terminated field and trims surrounding spaces
func cString(field []byte) string {
	end := 0
	for end < len(field) && field[end] != 0 {
		end++
	}

	return strings.TrimSpace(string(field[:end]))
}

// parseOctal reads leading octal digits and stops at the first other byte
func parseOctal(s string) int64 {
	var value int64

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '7' {
			break
		}

		value = value<<3 + int64(c-'0')
	}

	return value
}
