// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/archinstall/model"
)

func TestArchive(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Archive")
}

type fixtureEntry struct {
	name string
	body string
	dir  bool
}

func writeTar(w io.Writer, entries []fixtureEntry) {
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
			hdr.Size = 0
		}
		Expect(tw.WriteHeader(hdr)).To(Succeed())
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			Expect(err).ToNot(HaveOccurred())
		}
	}
	Expect(tw.Close()).To(Succeed())
}

func writeTarGz(path string, entries []fixtureEntry) {
	f, err := os.Create(path)
	Expect(err).ToNot(HaveOccurred())
	defer f.Close()

	gz := pgzip.NewWriter(f)
	writeTar(gz, entries)
	Expect(gz.Close()).To(Succeed())
}

func writeZip(path string, entries []fixtureEntry) {
	f, err := os.Create(path)
	Expect(err).ToNot(HaveOccurred())
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		name := e.name
		if e.dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		w, err := zw.Create(name)
		Expect(err).ToNot(HaveOccurred())
		if !e.dir {
			_, err = w.Write([]byte(e.body))
			Expect(err).ToNot(HaveOccurred())
		}
	}
	Expect(zw.Close()).To(Succeed())
}

// countTree counts regular files and directories below root
func countTree(root string) (files int, dirs int) {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		switch {
		case path == root:
		case d.IsDir():
			dirs++
		case d.Type().IsRegular():
			files++
		}

		return nil
	})
	Expect(err).ToNot(HaveOccurred())

	return files, dirs
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	Expect(err).ToNot(HaveOccurred())
	return string(b)
}

var _ = Describe("Header", func() {
	block := func(name string, size string, flag byte, prefix string) []byte {
		b := make([]byte, BlockSize)
		copy(b[nameOffset:], name)
		copy(b[sizeOffset:], size)
		b[typeFlagOffset] = flag
		copy(b[prefixOffset:], prefix)
		return b
	}

	It("decodes name, size and type", func() {
		hdr, err := ParseHeader(block("a/b.txt", "00000001750\x00", '0', ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.Name).To(Equal("a/b.txt"))
		Expect(hdr.Size).To(Equal(int64(1000)))
		Expect(hdr.IsDirectory()).To(BeFalse())
		Expect(hdr.Entry()).To(Equal(model.Entry{Name: "a/b.txt", Size: 1000}))
	})

	It("joins the ustar prefix", func() {
		hdr, err := ParseHeader(block("file.bin", "0", '0', "long/prefix"))
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.Name).To(Equal("long/prefix/file.bin"))
	})

	It("treats a NUL type flag as a regular file", func() {
		hdr, err := ParseHeader(block("x", "1", 0, ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.TypeFlag).To(Equal(byte('0')))
	})

	It("detects directories by type or trailing slash", func() {
		hdr, err := ParseHeader(block("dir", "0", '5', ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.IsDirectory()).To(BeTrue())

		hdr, err = ParseHeader(block("other/", "0", '0', ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr.IsDirectory()).To(BeTrue())
	})

	It("detects the end of the archive", func() {
		_, err := ParseHeader(make([]byte, BlockSize))
		Expect(err).To(MatchError(ErrEndOfArchive))
	})

	It("rejects short blocks and empty names", func() {
		_, err := ParseHeader(make([]byte, 100))
		Expect(err).To(MatchError(model.ErrMalformedArchive))

		_, err = ParseHeader(block("", "1", '0', ""))
		Expect(err).To(MatchError(model.ErrMalformedArchive))
	})

	It("computes padding to the next block", func() {
		Expect(Padding(0)).To(Equal(int64(0)))
		Expect(Padding(1)).To(Equal(int64(511)))
		Expect(Padding(512)).To(Equal(int64(0)))
		Expect(Padding(513)).To(Equal(int64(511)))
		Expect(Padding(1300)).To(Equal(int64(236)))
	})
})

var _ = Describe("SanitizeEntryPath", func() {
	It("normalizes separators and leading slashes", func() {
		Expect(SanitizeEntryPath(`dir\file.txt`)).To(Equal("dir/file.txt"))
		Expect(SanitizeEntryPath("/abs/file.txt")).To(Equal("abs/file.txt"))
		Expect(SanitizeEntryPath("./a/b")).To(Equal("./a/b"))
	})

	It("rejects parent segments", func() {
		for _, name := range []string{"../evil", "a/../../evil", `..\evil`, "a/.."} {
			_, err := SanitizeEntryPath(name)
			Expect(err).To(MatchError(model.ErrMalformedArchive), name)
		}
	})

	It("allows names that only contain dots", func() {
		Expect(SanitizeEntryPath("a/..b/c")).To(Equal("a/..b/c"))
	})
})

var _ = Describe("Extractors", func() {
	var (
		td  string
		ctx context.Context
	)

	BeforeEach(func() {
		td = GinkgoT().TempDir()
		ctx = context.Background()
	})

	Describe("NewExtractor", func() {
		It("dispatches by suffix", func() {
			for name, kind := range map[string]any{
				"a.tar.gz":   &TarGzExtractor{},
				"a.TGZ":      &TarGzExtractor{},
				"a.tar.bz2":  &TarBz2Extractor{},
				"a.Zip":      &ZipExtractor{},
				"pkg.nupkg":  &ZipExtractor{},
				"x/y/z.tgz":  &TarGzExtractor{},
				"M.TAR.BZ2":  &TarBz2Extractor{},
				"bundle.ZIP": &ZipExtractor{},
			} {
				e, err := NewExtractor(name)
				Expect(err).ToNot(HaveOccurred(), name)
				Expect(e).To(BeAssignableToTypeOf(kind), name)
			}
		})

		It("rejects unknown formats", func() {
			for _, name := range []string{"a.rar", "a.7z", "a.tar", "a.gz"} {
				_, err := NewExtractor(name)
				Expect(err).To(MatchError(model.ErrNotSupported), name)
				Expect(err.Error()).To(ContainSubstring("Supported formats:"))
			}
		})

		It("rejects blank names", func() {
			_, err := NewExtractor("  ")
			Expect(err).To(MatchError(model.ErrInvalidArgument))
		})
	})

	Describe("argument handling", func() {
		It("requires an archive path", func() {
			err := (&TarGzExtractor{}).Extract(ctx, "", td, nil)
			Expect(err).To(MatchError(model.ErrInvalidArgument))
		})

		It("requires a destination", func() {
			path := filepath.Join(td, "a.zip")
			writeZip(path, []fixtureEntry{{name: "a", body: "a"}})
			err := (&ZipExtractor{}).Extract(ctx, path, "", nil)
			Expect(err).To(MatchError(model.ErrInvalidArgument))
		})

		It("reports missing archives", func() {
			for _, e := range []Extractor{&TarGzExtractor{}, &TarBz2Extractor{}, &ZipExtractor{}} {
				err := e.Extract(ctx, filepath.Join(td, "missing"), filepath.Join(td, "out"), nil)
				Expect(err).To(MatchError(model.ErrNotFound))
			}
		})
	})

	Describe("TarGzExtractor", func() {
		It("round trips files and directories", func() {
			var entries []fixtureEntry
			for d := range 3 {
				entries = append(entries, fixtureEntry{name: fmt.Sprintf("dir%d", d), dir: true})
			}
			for f := range 5 {
				entries = append(entries, fixtureEntry{name: fmt.Sprintf("dir%d/file%d.txt", f%3, f), body: strings.Repeat("x", f*300)})
			}
			// block sized and one past block sized entries followed by another header
			entries = append(entries,
				fixtureEntry{name: "dir0/exact.bin", body: strings.Repeat("e", BlockSize)},
				fixtureEntry{name: "dir1/over.bin", body: strings.Repeat("o", BlockSize+1)},
				fixtureEntry{name: "dir2/after.txt", body: "after"},
			)

			path := filepath.Join(td, "bundle.tar.gz")
			writeTarGz(path, entries)

			var seen []string
			dest := filepath.Join(td, "out")
			err := Extract(ctx, path, dest, func(entry string, done int, total int) {
				seen = append(seen, entry)
				Expect(done).To(Equal(len(seen)))
				Expect(total).To(Equal(model.UnknownTotal))
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(seen).To(HaveLen(11))

			for d := range 3 {
				Expect(filepath.Join(dest, fmt.Sprintf("dir%d", d))).To(BeADirectory())
			}
			for f := range 5 {
				Expect(readFile(filepath.Join(dest, fmt.Sprintf("dir%d/file%d.txt", f%3, f)))).To(Equal(strings.Repeat("x", f*300)))
			}
			Expect(readFile(filepath.Join(dest, "dir0", "exact.bin"))).To(Equal(strings.Repeat("e", BlockSize)))
			Expect(readFile(filepath.Join(dest, "dir1", "over.bin"))).To(Equal(strings.Repeat("o", BlockSize+1)))
			Expect(readFile(filepath.Join(dest, "dir2", "after.txt"))).To(Equal("after"))

			files, dirs := countTree(dest)
			Expect(files).To(Equal(8))
			Expect(dirs).To(Equal(3))
		})

		It("verifies the gzip checksum", func() {
			path := filepath.Join(td, "crc.tar.gz")
			writeTarGz(path, []fixtureEntry{{name: "model.bin", body: strings.Repeat("m", 4096)}})

			raw, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			// the gzip trailer is CRC32 followed by ISIZE
			for i := len(raw) - 8; i < len(raw)-4; i++ {
				raw[i] ^= 0xff
			}
			Expect(os.WriteFile(path, raw, 0644)).To(Succeed())

			err = Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
		})

		It("creates parents of files without directory entries", func() {
			path := filepath.Join(td, "flat.tgz")
			writeTarGz(path, []fixtureEntry{{name: "a/b/c.txt", body: "deep"}})

			dest := filepath.Join(td, "out")
			Expect(Extract(ctx, path, dest, nil)).To(Succeed())
			Expect(readFile(filepath.Join(dest, "a", "b", "c.txt"))).To(Equal("deep"))
		})

		It("replaces an existing destination", func() {
			path := filepath.Join(td, "new.tgz")
			writeTarGz(path, []fixtureEntry{{name: "new.txt", body: "new"}})

			dest := filepath.Join(td, "out")
			Expect(os.MkdirAll(filepath.Join(dest, "old"), 0755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dest, "old", "stale.txt"), []byte("stale"), 0644)).To(Succeed())

			Expect(Extract(ctx, path, dest, nil)).To(Succeed())
			Expect(readFile(filepath.Join(dest, "new.txt"))).To(Equal("new"))
			Expect(filepath.Join(dest, "old")).ToNot(BeADirectory())
		})

		It("refuses path traversal", func() {
			path := filepath.Join(td, "evil.tar.gz")
			writeTarGz(path, []fixtureEntry{{name: "../../evil.txt", body: "boom"}})

			dest := filepath.Join(td, "deep", "out")
			err := Extract(ctx, path, dest, nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
			Expect(err.Error()).To(ContainSubstring("invalid path"))
			Expect(filepath.Join(td, "evil.txt")).ToNot(BeAnExistingFile())
		})

		It("reports corrupt streams as malformed", func() {
			path := filepath.Join(td, "bad.tar.gz")
			Expect(os.WriteFile(path, []byte{0x1f, 0x8b, 0x00, 0x01, 0x02}, 0644)).To(Succeed())

			err := Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
		})
	})

	Describe("TarBz2Extractor", func() {
		It("extracts archives produced by tar", func() {
			dest := filepath.Join(td, "out")
			var count int
			err := Extract(ctx, "testdata/sample.tar.bz2", dest, func(string, int, int) { count++ })
			Expect(err).ToNot(HaveOccurred())
			Expect(count).To(Equal(7))

			Expect(readFile(filepath.Join(dest, "bundle", "README.txt"))).To(Equal("hello from bzip2\n"))
			Expect(readFile(filepath.Join(dest, "bundle", "models", "nested", "weights.bin"))).To(Equal(strings.Repeat("a", 1300)))
			Expect(readFile(filepath.Join(dest, "bundle", "models", "blank.txt"))).To(BeEmpty())
			Expect(filepath.Join(dest, "bundle", "models", "empty")).To(BeADirectory())
		})

		It("verifies the stream checksum", func() {
			raw, err := os.ReadFile("testdata/sample.tar.bz2")
			Expect(err).ToNot(HaveOccurred())
			// the stream ends with the 32 bit combined CRC and at most 7 padding bits
			raw[len(raw)-2] ^= 0xff

			path := filepath.Join(td, "crc.tar.bz2")
			Expect(os.WriteFile(path, raw, 0644)).To(Succeed())

			err = Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
		})
	})

	Describe("ZipExtractor", func() {
		It("extracts with known totals", func() {
			path := filepath.Join(td, "bundle.zip")
			writeZip(path, []fixtureEntry{
				{name: "root", dir: true},
				{name: "root/a.txt", body: "alpha"},
				{name: `root\win\b.txt`, body: "beta"},
			})

			dest := filepath.Join(td, "out")
			var totals []int
			err := Extract(ctx, path, dest, func(_ string, done int, total int) {
				totals = append(totals, total)
				Expect(done).To(Equal(len(totals)))
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(totals).To(Equal([]int{3, 3, 3}))
			Expect(readFile(filepath.Join(dest, "root", "a.txt"))).To(Equal("alpha"))
			Expect(readFile(filepath.Join(dest, "root", "win", "b.txt"))).To(Equal("beta"))

			files, dirs := countTree(dest)
			Expect(files).To(Equal(2))
			Expect(dirs).To(Equal(2))
		})

		It("refuses path traversal", func() {
			path := filepath.Join(td, "evil.zip")
			writeZip(path, []fixtureEntry{{name: "../evil.txt", body: "boom"}})

			err := Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
			Expect(filepath.Join(td, "evil.txt")).ToNot(BeAnExistingFile())
		})

		It("verifies entry checksums", func() {
			buf := &bytes.Buffer{}
			zw := zip.NewWriter(buf)
			w, err := zw.CreateHeader(&zip.FileHeader{Name: "data.txt", Method: zip.Store})
			Expect(err).ToNot(HaveOccurred())
			_, err = w.Write([]byte("hello world, genuine content"))
			Expect(err).ToNot(HaveOccurred())
			Expect(zw.Close()).To(Succeed())

			raw := buf.Bytes()
			idx := bytes.Index(raw, []byte("genuine"))
			Expect(idx).To(BeNumerically(">", 0))
			raw[idx] = 'X'

			path := filepath.Join(td, "corrupt.zip")
			Expect(os.WriteFile(path, raw, 0644)).To(Succeed())

			err = Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
			Expect(err).To(MatchError(zip.ErrChecksum))
		})

		It("reports invalid containers as malformed", func() {
			path := filepath.Join(td, "bad.zip")
			Expect(os.WriteFile(path, []byte("PK\x03\x04 truncated"), 0644)).To(Succeed())

			err := Extract(ctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
		})
	})

	Describe("WalkTar", func() {
		It("stops on an all zero block", func() {
			buf := &bytes.Buffer{}
			writeTar(buf, []fixtureEntry{{name: "one.txt", body: "1"}})
			buf.Write([]byte("trailing garbage is never read"))

			n, err := WalkTar(ctx, buf, td, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("accepts streams without an end marker", func() {
			buf := &bytes.Buffer{}
			writeTar(buf, []fixtureEntry{{name: "one.txt", body: "1"}})
			raw := buf.Bytes()[:2*BlockSize]

			n, err := WalkTar(ctx, bytes.NewReader(raw), td, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("reports truncated headers and data", func() {
			buf := &bytes.Buffer{}
			writeTar(buf, []fixtureEntry{{name: "big.bin", body: strings.Repeat("b", 2000)}})

			_, err := WalkTar(ctx, bytes.NewReader(buf.Bytes()[:100]), td, nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
			Expect(err.Error()).To(ContainSubstring("invalid tar header"))

			_, err = WalkTar(ctx, bytes.NewReader(buf.Bytes()[:BlockSize+1000]), td, nil)
			Expect(err).To(MatchError(model.ErrMalformedArchive))
		})

		It("can be canceled in the middle of a large entry", func() {
			buf := &bytes.Buffer{}
			writeTar(buf, []fixtureEntry{{name: "huge.bin", body: strings.Repeat("z", 4<<20)}})

			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			r := &cancelingReader{r: buf, after: 256 * 1024, cancel: cancel}
			_, err := WalkTar(cctx, r, td, nil)
			Expect(err).To(MatchError(model.ErrCanceled))
			Expect(err).To(MatchError(context.Canceled))
			Expect(model.IsCanceled(err)).To(BeTrue())
		})

		It("honors an already canceled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			path := filepath.Join(td, "a.tar.gz")
			writeTarGz(path, []fixtureEntry{{name: "a", body: "a"}})
			err := Extract(cctx, path, filepath.Join(td, "out"), nil)
			Expect(err).To(MatchError(model.ErrCanceled))
		})
	})
})

type cancelingReader struct {
	r      io.Reader
	read   int
	after  int
	cancel context.CancelFunc
}

func (c *cancelingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	if c.read >= c.after {
		c.cancel()
	}
	return n, err
}
