// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/choria-io/fisk"

	"github.com/choria-io/archinstall/pipeline"
)

type deleteCommand struct {
	path string
}

func registerDeleteCommand(app *fisk.Application) {
	cmd := &deleteCommand{}

	del := app.Command("delete", "Removes a previously installed file or directory").Alias("rm").Action(cmd.deleteAction)
	del.Arg("path", "Path to remove").Required().StringVar(&cmd.path)
}

func (c *deleteCommand) deleteAction(_ *fisk.ParseContext) error {
	return pipeline.Delete(c.path, newProgressObserver(newOutputLogger()))
}
