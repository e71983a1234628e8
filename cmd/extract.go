// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/choria-io/fisk"
	"github.com/dustin/go-humanize"

	"github.com/choria-io/archinstall/archive"
	"github.com/choria-io/archinstall/model"
	"github.com/choria-io/archinstall/pipeline"
)

type extractCommand struct {
	archive string
	dest    string
	force   bool
}

func registerExtractCommand(app *fisk.Application) {
	cmd := &extractCommand{}

	extract := app.Command("extract", "Extracts a local archive").Action(cmd.extractAction)
	extract.Arg("archive", "Archive to extract").Required().ExistingFileVar(&cmd.archive)
	extract.Arg("destination", "Directory to extract into, replaced when it exists").Required().StringVar(&cmd.dest)
	extract.Flag("force", "Skip the free space check").UnNegatableBoolVar(&cmd.force)
}

func (c *extractCommand) extractAction(_ *fisk.ParseContext) error {
	mgr, out, err := newManager(nil)
	if err != nil {
		return err
	}

	extractor, err := archive.NewExtractor(c.archive)
	if err != nil {
		return err
	}

	err = archive.Validate(c.archive)
	if err != nil {
		return err
	}

	if !c.force {
		margin, err := mgr.Config().FreeSpaceMargin()
		if err != nil {
			return err
		}

		err = pipeline.CheckSpace(ctx, c.archive, c.dest, margin)
		if err != nil {
			return err
		}
	}

	reporter := newProgressObserver(out)
	err = pipeline.Extract(ctx, extractor, c.archive, c.dest, reporter)
	if err != nil {
		if model.IsCanceled(err) {
			reporter.Canceled()
		}
		return err
	}

	size := archive.EstimateExtractedSize(c.archive)
	if size == model.UnknownTotal {
		out.Info(fmt.Sprintf("Extracted %s to %s", c.archive, c.dest))
	} else {
		out.Info(fmt.Sprintf("Extracted %s to %s", c.archive, c.dest), "size", humanize.IBytes(uint64(size)))
	}

	return nil
}
