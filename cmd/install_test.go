// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/archinstall/manager"
	"github.com/choria-io/archinstall/model"
)

func TestCommands(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Commands")
}

var _ = Describe("install", func() {
	It("passes the checksum to the cache", func() {
		cfg := manager.DefaultConfig()
		cmd := &installCommand{cache: "android-native-libs", sha256: strings.Repeat("AB", 32)}

		Expect(cmd.configure(cfg)).To(Succeed())

		cc, err := cfg.CacheConfig("android-native-libs")
		Expect(err).ToNot(HaveOccurred())
		Expect(cc.SHA256).To(Equal(strings.Repeat("ab", 32)))
	})

	It("leaves the configuration alone without a cache", func() {
		cfg := manager.DefaultConfig()
		cmd := &installCommand{sha256: strings.Repeat("ab", 32)}

		Expect(cmd.configure(cfg)).To(Succeed())
		Expect(cfg).To(Equal(manager.DefaultConfig()))
	})

	It("rejects bad checksums and unknown caches", func() {
		cmd := &installCommand{cache: "android-native-libs", sha256: "abc"}
		Expect(cmd.configure(manager.DefaultConfig())).To(MatchError(model.ErrInvalidArgument))

		cmd = &installCommand{cache: "windows", sha256: strings.Repeat("ab", 32)}
		Expect(cmd.configure(manager.DefaultConfig())).To(MatchError(model.ErrUnknownCache))
	})
})
