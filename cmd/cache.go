// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"
)

type cacheCommand struct {
	name string
	url  string
	file string
	dir  string
	json bool
}

type cacheStatus struct {
	Name   string `json:"name" yaml:"name"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Marker string `json:"marker" yaml:"marker"`
	Path   string `json:"path" yaml:"path"`
	Ready  bool   `json:"ready" yaml:"ready"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

func registerCacheCommand(app *fisk.Application) {
	cmd := &cacheCommand{}

	cache := app.Command("cache", "Manages extracted archive caches")

	ensure := cache.Command("ensure", "Downloads and extracts a cache unless it is ready").Action(cmd.ensureAction)
	ensure.Arg("name", "Cache name").Required().StringVar(&cmd.name)
	ensure.Flag("url", "URL to download the archive from, defaults to the configured URL").PlaceHolder("URL").StringVar(&cmd.url)
	ensure.Flag("file", "Archive file name when the URL does not end in one").PlaceHolder("NAME").StringVar(&cmd.file)

	clean := cache.Command("clean", "Removes a cache").Action(cmd.cleanAction)
	clean.Arg("name", "Cache name").Required().StringVar(&cmd.name)

	status := cache.Command("status", "Shows the state of all caches").Alias("ls").Action(cmd.statusAction)
	status.Flag("json", "Output status in JSON format").UnNegatableBoolVar(&cmd.json)

	find := cache.Command("find", "Finds a directory inside a cache").Action(cmd.findAction)
	find.Arg("name", "Cache name").Required().StringVar(&cmd.name)
	find.Arg("directory", "Directory to find").Required().StringVar(&cmd.dir)
}

func (c *cacheCommand) ensureAction(_ *fisk.ParseContext) error {
	mgr, out, err := newManager(nil)
	if err != nil {
		return err
	}

	cache, err := mgr.EnsureCache(ctx, c.name, c.url, c.file)
	if err != nil {
		return err
	}

	out.Info("Cache ready", "path", cache.Path())

	return nil
}

func (c *cacheCommand) cleanAction(_ *fisk.ParseContext) error {
	mgr, out, err := newManager(nil)
	if err != nil {
		return err
	}

	cache, err := mgr.Cache(c.name)
	if err != nil {
		return err
	}

	err = cache.Clean(ctx)
	if err != nil {
		return err
	}

	out.Info("Cache removed", "path", cache.Path())

	return nil
}

func (c *cacheCommand) findAction(_ *fisk.ParseContext) error {
	mgr, _, err := newManager(nil)
	if err != nil {
		return err
	}

	cache, err := mgr.Cache(c.name)
	if err != nil {
		return err
	}

	if !cache.IsReady() {
		return fmt.Errorf("cache %s is not ready", c.name)
	}

	dir, found := cache.FindDirectoryInCache(c.dir)
	if !found {
		return fmt.Errorf("directory %s not found in cache %s", c.dir, c.name)
	}

	fmt.Println(dir)

	return nil
}

func (c *cacheCommand) statusAction(_ *fisk.ParseContext) error {
	mgr, _, err := newManager(nil)
	if err != nil {
		return err
	}

	var res []cacheStatus
	for _, name := range mgr.Caches() {
		cache, err := mgr.Cache(name)
		if err != nil {
			return err
		}

		cc, err := mgr.Config().CacheConfig(name)
		if err != nil {
			return err
		}

		def := cache.Definition()
		res = append(res, cacheStatus{
			Name:   def.Name,
			Label:  def.Label,
			Marker: def.Marker,
			Path:   cache.Path(),
			Ready:  cache.IsReady(),
			URL:    cc.URL,
		})
	}

	if c.json {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	out, err := yaml.Marshal(res)
	if err != nil {
		return err
	}
	fmt.Print(string(out))

	return nil
}
