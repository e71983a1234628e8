// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/archinstall/model"
)

func TestHandler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Handler")
}

func touch(path string, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

type recorder struct {
	statuses []string
	progress []float64
}

func (r *recorder) Status(msg string) { r.statuses = append(r.statuses, msg) }
func (r *recorder) Progress(fraction float64) { r.progress = append(r.progress, fraction) }

var _ = Describe("Unwrap", func() {
	var td string

	BeforeEach(func() {
		td = GinkgoT().TempDir()
	})

	It("returns the root when files are at the top", func() {
		touch(filepath.Join(td, "model.onnx"), "x")
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(td))
	})

	It("unwraps one level", func() {
		touch(filepath.Join(td, "wrapper", "model.onnx"), "x")
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(filepath.Join(td, "wrapper")))
	})

	It("unwraps three levels", func() {
		touch(filepath.Join(td, "a", "b", "c", "tokens.txt"), "x")
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(filepath.Join(td, "a", "b", "c")))
	})

	It("stops at the depth limit", func() {
		touch(filepath.Join(td, "a", "b", "c", "d", "model.onnx"), "x")
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(filepath.Join(td, "a", "b", "c")))
		Expect(Unwrap(td, 0)).To(Equal(td))
	})

	It("keeps the root with multiple entries", func() {
		Expect(os.MkdirAll(filepath.Join(td, "dir1"), 0755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(td, "dir2"), 0755)).To(Succeed())
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(td))
	})

	It("keeps the root when a single directory sits beside a file", func() {
		touch(filepath.Join(td, "readme.txt"), "x")
		touch(filepath.Join(td, "inner", "model.onnx"), "x")
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(td))
	})

	It("handles empty and missing directories", func() {
		Expect(Unwrap(td, DefaultUnwrapDepth)).To(Equal(td))
		Expect(Unwrap(filepath.Join(td, "missing"), DefaultUnwrapDepth)).To(Equal(filepath.Join(td, "missing")))
	})
})

var _ = Describe("FindDirectory", func() {
	var td string

	BeforeEach(func() {
		td = GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(td, "pkg", "deep", "jniLibs", "arm64-v8a"), 0755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(td, "other", "arm64-v8a"), 0755)).To(Succeed())
	})

	It("finds nested directories", func() {
		dir, ok := FindDirectory(td, "jniLibs")
		Expect(ok).To(BeTrue())
		Expect(dir).To(Equal(filepath.Join(td, "pkg", "deep", "jniLibs")))
	})

	It("matches multi segment names", func() {
		dir, ok := FindDirectory(td, "jniLibs/arm64-v8a")
		Expect(ok).To(BeTrue())
		Expect(dir).To(Equal(filepath.Join(td, "pkg", "deep", "jniLibs", "arm64-v8a")))
	})

	It("prefers the shallowest match", func() {
		dir, ok := FindDirectory(td, "arm64-v8a")
		Expect(ok).To(BeTrue())
		Expect(dir).To(Equal(filepath.Join(td, "other", "arm64-v8a")))
	})

	It("reports missing directories", func() {
		_, ok := FindDirectory(td, "x86")
		Expect(ok).To(BeFalse())

		_, ok = FindDirectory(td, "")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("TreeCopy", func() {
	var (
		td   string
		src  string
		dest string
		ctx  context.Context
	)

	BeforeEach(func() {
		td = GinkgoT().TempDir()
		src = filepath.Join(td, "extracted")
		dest = filepath.Join(td, "dest")
		ctx = context.Background()

		touch(filepath.Join(src, "bundle-v1", "model.onnx"), "model")
		touch(filepath.Join(src, "bundle-v1", "tokens.txt"), "tokens")
		touch(filepath.Join(src, "bundle-v1", "espeak", "voices", "en"), "voice")
	})

	It("validates arguments", func() {
		_, err := NewTreeCopy("")
		Expect(err).To(MatchError(model.ErrInvalidArgument))

		_, err = NewTreeCopy(dest, WithUnwrapDepth(-1))
		Expect(err).To(MatchError(model.ErrInvalidArgument))
	})

	It("copies the unwrapped tree and reports progress", func() {
		h, err := NewTreeCopy(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Destination()).To(Equal(dest))

		rec := &recorder{}
		Expect(h.Handle(ctx, src, rec)).To(Succeed())

		Expect(filepath.Join(dest, "model.onnx")).To(BeARegularFile())
		Expect(filepath.Join(dest, "tokens.txt")).To(BeARegularFile())
		Expect(os.ReadFile(filepath.Join(dest, "espeak", "voices", "en"))).To(Equal([]byte("voice")))

		Expect(rec.progress).To(HaveLen(4))
		Expect(rec.progress[0]).To(Equal(0.0))
		Expect(rec.progress[3]).To(Equal(1.0))
		Expect(rec.statuses).To(ContainElement("Copying model.onnx..."))
		Expect(rec.statuses[len(rec.statuses)-1]).To(ContainSubstring(dest))
	})

	It("ignores the cache completion marker", func() {
		touch(filepath.Join(src, model.CompleteMarker), "2026-01-01T00:00:00Z")

		h, err := NewTreeCopy(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Handle(ctx, src, nil)).To(Succeed())

		Expect(filepath.Join(dest, "model.onnx")).To(BeARegularFile())
		Expect(filepath.Join(dest, model.CompleteMarker)).ToNot(BeAnExistingFile())
		Expect(filepath.Join(dest, "bundle-v1")).ToNot(BeADirectory())
	})

	It("applies selectors", func() {
		sel, err := NewGlobSelector("*.onnx", "espeak/**")
		Expect(err).ToNot(HaveOccurred())

		h, err := NewTreeCopy(dest, WithSelector(sel))
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Handle(ctx, src, nil)).To(Succeed())

		Expect(filepath.Join(dest, "model.onnx")).To(BeARegularFile())
		Expect(filepath.Join(dest, "espeak", "voices", "en")).To(BeARegularFile())
		Expect(filepath.Join(dest, "tokens.txt")).ToNot(BeAnExistingFile())
	})

	It("fails when nothing was copied", func() {
		sel, err := NewExprSelector(`ext == ".bin"`)
		Expect(err).ToNot(HaveOccurred())

		h, err := NewTreeCopy(dest, WithSelector(sel))
		Expect(err).ToNot(HaveOccurred())

		err = h.Handle(ctx, src, nil)
		Expect(err).To(MatchError(model.ErrContentHandler))
		Expect(err.Error()).To(ContainSubstring("no files found"))
	})

	It("stops when canceled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		h, err := NewTreeCopy(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Handle(cctx, src, nil)).To(MatchError(model.ErrCanceled))
	})
})

var _ = Describe("DirectoryCopy", func() {
	var (
		td   string
		dest string
		ctx  context.Context
	)

	BeforeEach(func() {
		td = GinkgoT().TempDir()
		dest = filepath.Join(td, "Plugins", "Android", "arm64-v8a")
		ctx = context.Background()

		touch(filepath.Join(td, "cache", "build", "jniLibs", "arm64-v8a", "libonnx.so"), "onnx")
		touch(filepath.Join(td, "cache", "build", "jniLibs", "arm64-v8a", "libsherpa.so"), "sherpa")
		touch(filepath.Join(td, "cache", "build", "jniLibs", "arm64-v8a", "debug", "symbols.txt"), "sym")
		touch(filepath.Join(td, "cache", "build", "jniLibs", "x86_64", "libonnx.so"), "onnx")
	})

	It("copies one slice without descending", func() {
		h, err := NewDirectoryCopy("jniLibs/arm64-v8a", dest, false)
		Expect(err).ToNot(HaveOccurred())

		rec := &recorder{}
		Expect(h.Handle(ctx, filepath.Join(td, "cache"), rec)).To(Succeed())

		Expect(os.ReadFile(filepath.Join(dest, "libonnx.so"))).To(Equal([]byte("onnx")))
		Expect(filepath.Join(dest, "libsherpa.so")).To(BeARegularFile())
		Expect(filepath.Join(dest, "debug")).ToNot(BeADirectory())
		Expect(rec.progress).To(Equal([]float64{0, 0.5, 1}))
	})

	It("copies recursively when asked", func() {
		h, err := NewDirectoryCopy("arm64-v8a", dest, true)
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Handle(ctx, filepath.Join(td, "cache"), nil)).To(Succeed())
		Expect(filepath.Join(dest, "debug", "symbols.txt")).To(BeARegularFile())
	})

	It("fails for missing directories", func() {
		h, err := NewDirectoryCopy("armeabi-v7a", dest, false)
		Expect(err).ToNot(HaveOccurred())

		err = h.Handle(ctx, filepath.Join(td, "cache"), nil)
		Expect(err).To(MatchError(model.ErrContentHandler))
		Expect(err.Error()).To(ContainSubstring("not found"))
	})

	It("validates arguments", func() {
		_, err := NewDirectoryCopy("", dest, false)
		Expect(err).To(MatchError(model.ErrInvalidArgument))
		_, err = NewDirectoryCopy("x", " ", false)
		Expect(err).To(MatchError(model.ErrInvalidArgument))
	})
})

var _ = Describe("Selectors", func() {
	It("matches globs against names and paths", func() {
		sel, err := NewGlobSelector("*.so", "models/**/*.onnx")
		Expect(err).ToNot(HaveOccurred())

		for rel, want := range map[string]bool{
			"lib/libonnx.so":       true,
			"libonnx.so":           true,
			"models/a/b/x.onnx":    true,
			"models/x.onnx":        true,
			"other/x.onnx":         false,
			"lib/libonnx.so.debug": false,
		} {
			Expect(sel.Select(rel, nil)).To(Equal(want), rel)
		}
	})

	It("rejects invalid globs", func() {
		_, err := NewGlobSelector("[")
		Expect(err).To(MatchError(model.ErrInvalidArgument))

		_, err = NewGlobSelector()
		Expect(err).To(MatchError(model.ErrInvalidArgument))
	})

	It("evaluates expressions", func() {
		td := GinkgoT().TempDir()
		touch(filepath.Join(td, "big.onnx"), "0123456789")
		info, err := os.Stat(filepath.Join(td, "big.onnx"))
		Expect(err).ToNot(HaveOccurred())

		sel, err := NewExprSelector(`ext == ".onnx" && size > 5 && dir == "models"`)
		Expect(err).ToNot(HaveOccurred())
		Expect(sel.Select("models/big.onnx", info)).To(BeTrue())
		Expect(sel.Select("other/big.onnx", info)).To(BeFalse())

		sel, err = NewExprSelector(`name startsWith "lib"`)
		Expect(err).ToNot(HaveOccurred())
		Expect(sel.Select("x/libfoo.so", nil)).To(BeTrue())
	})

	It("rejects invalid expressions", func() {
		_, err := NewExprSelector(`size +`)
		Expect(err).To(MatchError(model.ErrInvalidArgument))

		_, err = NewExprSelector(`size`)
		Expect(err).To(MatchError(model.ErrInvalidArgument))

		_, err = NewExprSelector(" ")
		Expect(err).To(MatchError(model.ErrInvalidArgument))
	})

	It("combines repeated selectors", func() {
		glob, err := NewGlobSelector("*.so")
		Expect(err).ToNot(HaveOccurred())
		ex, err := NewExprSelector(`dir == "arm64"`)
		Expect(err).ToNot(HaveOccurred())

		o, err := newOptions([]Option{WithSelector(glob), WithSelector(ex)})
		Expect(err).ToNot(HaveOccurred())

		Expect(o.selector.Select("arm64/lib.so", nil)).To(BeTrue())
		Expect(o.selector.Select("x86/lib.so", nil)).To(BeFalse())
		Expect(o.selector.Select("arm64/lib.txt", nil)).To(BeFalse())
	})
})
