// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/choria-io/appbuilder/builder"
	"github.com/choria-io/appbuilder/commands/exec"
	"github.com/choria-io/appbuilder/commands/parent"
	"github.com/choria-io/fisk"

	iu "github.com/choria-io/archinstall/internal/util"
)

var (
	ctx         context.Context
	debug       bool
	cfgFile     string
	monitorPort int
	Version     = "development"
)

func main() {
	app := fisk.New("archinstall", "Archive download, extraction and installation")
	app.Version(Version)
	app.Author("https://choria.io")

	app.Flag("debug", "Enable debug logging").UnNegatableBoolVar(&debug)
	app.Flag("config", "Configuration file to use").Envar("ARCHINSTALL_CONFIG").PlaceHolder("FILE").ExistingFileVar(&cfgFile)
	app.Flag("monitor-port", "Port to expose Prometheus metrics on").PlaceHolder("PORT").IntVar(&monitorPort)

	registerInstallCommand(app)
	registerExtractCommand(app)
	registerValidateCommand(app)
	registerDeleteCommand(app)
	registerCacheCommand(app)

	ctx, _ = signal.NotifyContext(context.Background(), os.Interrupt)
	err := extendCli(app)
	if err != nil {
		log.Fatalf("Could not load CLI extensions: %s", err)
	}

	app.MustParseWithUsage(os.Args[1:])
}

func extendCli(app *fisk.Application) error {
	var path string
	var userFile = filepath.Join(xdg.ConfigHome, "choria", "archinstall", "cli-extension.yaml")
	var systemFile = "/etc/choria/archinstall/cli-extension.yaml"

	if iu.FileExists(userFile) {
		path = userFile
	} else if iu.FileExists(systemFile) {
		path = systemFile
	}

	if path == "" {
		return nil
	}

	def, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	parent.MustRegister()
	exec.MustRegister()

	ext := app.Command("plugin", "External CLI plugin commands").Alias("ext")

	return builder.MountAsCommand(ctx, ext, def, nil)
}
