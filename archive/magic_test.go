// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/archinstall/model"
)

var _ = Describe("Validate", func() {
	var td string

	BeforeEach(func() {
		td = GinkgoT().TempDir()
	})

	write := func(name string, content []byte) string {
		path := filepath.Join(td, name)
		Expect(os.WriteFile(path, content, 0644)).To(Succeed())
		return path
	}

	It("accepts supported magic bytes", func() {
		Expect(Validate(write("a.tgz", []byte{0x1f, 0x8b, 0x08, 0x00, 0x01}))).To(Succeed())
		Expect(Validate(write("a.tar.bz2", []byte("BZh91AY")))).To(Succeed())
		Expect(Validate(write("a.zip", []byte("PK\x03\x04rest")))).To(Succeed())
		Expect(Validate("testdata/sample.tar.bz2")).To(Succeed())
	})

	It("reports missing files", func() {
		err := Validate(filepath.Join(td, "nope.zip"))
		Expect(err).To(MatchError(model.ErrNotFound))
		Expect(err.Error()).To(ContainSubstring("not found"))
		Expect(err.Error()).To(ContainSubstring("nope.zip"))
	})

	It("reports empty files", func() {
		err := Validate(write("empty.zip", nil))
		Expect(err).To(MatchError(model.ErrEmptyArchive))
		Expect(err.Error()).To(ContainSubstring("empty"))
	})

	It("diagnoses HTML error pages", func() {
		err := Validate("testdata/error.html")
		Expect(err).To(MatchError(model.ErrNotSupported))
		Expect(err.Error()).To(ContainSubstring("HTML"))
	})

	It("lists supported formats for unknown content", func() {
		err := Validate(write("a.rar", []byte("Rar!\x1a\x07")))
		Expect(err).To(MatchError(model.ErrNotSupported))
		Expect(err.Error()).To(ContainSubstring("Supported formats: " + SupportedFormats))
	})

	It("handles files shorter than the magic", func() {
		err := Validate(write("short", []byte{0x1f}))
		Expect(err).To(MatchError(model.ErrNotSupported))

		Expect(Validate(write("short.gz", []byte{0x1f, 0x8b}))).To(Succeed())
	})

	It("identifies formats", func() {
		Expect(Sniff([]byte{0x1f, 0x8b})).To(Equal(FormatGzip))
		Expect(Sniff([]byte("BZh"))).To(Equal(FormatBzip2))
		Expect(Sniff([]byte("PK\x03\x04"))).To(Equal(FormatZip))
		Expect(Sniff([]byte("PK"))).To(Equal(FormatUnknown))
		Expect(FormatZip.String()).To(Equal("zip"))
	})
})

var _ = Describe("EstimateExtractedSize", func() {
	var td string

	BeforeEach(func() {
		td = GinkgoT().TempDir()
	})

	It("sums zip entries", func() {
		path := filepath.Join(td, "a.zip")
		writeZip(path, []fixtureEntry{{name: "a", body: strings.Repeat("a", 100)}, {name: "b", body: strings.Repeat("b", 50)}})
		Expect(EstimateExtractedSize(path)).To(Equal(int64(150)))
	})

	It("reads the gzip trailer", func() {
		path := filepath.Join(td, "a.tar.gz")
		writeTarGz(path, []fixtureEntry{{name: "a", body: strings.Repeat("a", 10000)}})

		// header, one padded data block and the two block end marker
		Expect(EstimateExtractedSize(path)).To(Equal(int64(BlockSize + 10240 + 2*BlockSize)))
	})

	It("does not know bzip2 sizes", func() {
		Expect(EstimateExtractedSize("testdata/sample.tar.bz2")).To(Equal(int64(model.UnknownTotal)))
	})
})
