// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/choria-io/fisk"

	"github.com/choria-io/archinstall/download"
	"github.com/choria-io/archinstall/handler"
	"github.com/choria-io/archinstall/manager"
	"github.com/choria-io/archinstall/model"
	"github.com/choria-io/archinstall/pipeline"
)

type installCommand struct {
	url       string
	dest      string
	file      string
	directory string
	recursive bool
	include   []string
	selector  string
	unwrap    int
	hdr       map[string]string
	username  string
	password  string
	cache     string
	sha256    string
}

func registerInstallCommand(app *fisk.Application) {
	cmd := &installCommand{}

	install := app.Command("install", "Downloads, extracts and installs an archive").Action(cmd.installAction)
	install.Arg("url", "URL to download the archive from").Required().StringVar(&cmd.url)
	install.Arg("destination", "Directory to install files into").Required().StringVar(&cmd.dest)
	install.Flag("file", "Archive file name when the URL does not end in one").PlaceHolder("NAME").StringVar(&cmd.file)
	install.Flag("directory", "Only install this directory found in the archive").PlaceHolder("DIR").StringVar(&cmd.directory)
	install.Flag("recursive", "Include sub directories of --directory").Default("true").BoolVar(&cmd.recursive)
	install.Flag("include", "Only install files matching a glob").PlaceHolder("GLOB").StringsVar(&cmd.include)
	install.Flag("select", "Only install files matching an expression").PlaceHolder("EXPR").StringVar(&cmd.selector)
	install.Flag("unwrap", "Maximum wrapper directories to remove").Default("3").IntVar(&cmd.unwrap)
	install.Flag("sha256", "Expected sha256 checksum of the archive, also applied to --cache downloads").PlaceHolder("SUM").StringVar(&cmd.sha256)
	install.Flag("cache", "Install from the named archive cache").PlaceHolder("NAME").StringVar(&cmd.cache)
	install.Flag("header", "Add headers to the HTTP requests").Short('H').PlaceHolder("K:V").StringMapVar(&cmd.hdr)
	install.Flag("username", "HTTP username to use for authentication").PlaceHolder("USER").StringVar(&cmd.username)
	install.Flag("password", "HTTP password to use for authentication").PlaceHolder("PASS").Envar("HTTP_PASSWORD").StringVar(&cmd.password)
}

func (c *installCommand) downloadOptions() []download.Option {
	var opts []download.Option

	for k, v := range c.hdr {
		opts = append(opts, download.WithHeader(k, v))
	}

	if c.username != "" {
		opts = append(opts, download.WithBasicAuth(c.username, c.password))
	}

	return opts
}

func (c *installCommand) handlerOptions() ([]handler.Option, error) {
	opts := []handler.Option{handler.WithUnwrapDepth(c.unwrap)}

	if len(c.include) > 0 {
		sel, err := handler.NewGlobSelector(c.include...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, handler.WithSelector(sel))
	}

	if c.selector != "" {
		sel, err := handler.NewExprSelector(c.selector)
		if err != nil {
			return nil, err
		}
		opts = append(opts, handler.WithSelector(sel))
	}

	return opts, nil
}

func (c *installCommand) contentHandler(log model.Logger) (model.ContentHandler, error) {
	opts, err := c.handlerOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, handler.WithLogger(log.With("component", "handler")))

	if c.directory != "" {
		return handler.NewDirectoryCopy(c.directory, c.dest, c.recursive, opts...)
	}

	return handler.NewTreeCopy(c.dest, opts...)
}

// configure passes --sha256 to the cache when installing from one
func (c *installCommand) configure(cfg *manager.Config) error {
	if c.cache == "" || c.sha256 == "" {
		return nil
	}

	return cfg.SetCacheChecksum(c.cache, c.sha256)
}

func (c *installCommand) installAction(_ *fisk.ParseContext) error {
	mgr, _, err := newManager(c.configure, c.downloadOptions()...)
	if err != nil {
		return err
	}

	h, err := c.contentHandler(mgr.Logger())
	if err != nil {
		return err
	}

	if c.cache != "" {
		return mgr.InstallFromCache(ctx, c.cache, c.url, c.file, h)
	}

	var opts []pipeline.Option
	if c.sha256 != "" {
		opts = append(opts, pipeline.WithChecksum(c.sha256))
	}

	p, err := mgr.NewPipeline(h, opts...)
	if err != nil {
		return err
	}

	return p.Run(ctx, c.url, c.file)
}
