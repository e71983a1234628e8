// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/choria-io/fisk"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"

	"github.com/choria-io/archinstall/archive"
	iu "github.com/choria-io/archinstall/internal/util"
	"github.com/choria-io/archinstall/model"
)

type validateCommand struct {
	file string
	json bool
}

type validateResult struct {
	File      string `json:"file" yaml:"file"`
	Format    string `json:"format" yaml:"format"`
	Size      int64  `json:"size" yaml:"size"`
	Extracted int64  `json:"extracted_size,omitempty" yaml:"extracted_size,omitempty"`
	Sha256    string `json:"sha256" yaml:"sha256"`
}

func registerValidateCommand(app *fisk.Application) {
	cmd := &validateCommand{}

	validate := app.Command("validate", "Checks that a file looks like a supported archive").Action(cmd.validateAction)
	validate.Arg("file", "File to check").Required().StringVar(&cmd.file)
	validate.Flag("json", "Output the result in JSON format").UnNegatableBoolVar(&cmd.json)
}

func (c *validateCommand) validateAction(_ *fisk.ParseContext) error {
	err := archive.Validate(c.file)
	if err != nil {
		return err
	}

	stat, err := os.Stat(c.file)
	if err != nil {
		return err
	}

	f, err := os.Open(c.file)
	if err != nil {
		return err
	}
	header := make([]byte, 4)
	n, _ := f.Read(header)
	f.Close()

	sum, err := iu.Sha256HashFile(ctx, c.file)
	if err != nil {
		return err
	}

	res := validateResult{
		File:   c.file,
		Format: archive.Sniff(header[:n]).String(),
		Size:   stat.Size(),
		Sha256: sum,
	}

	extracted := archive.EstimateExtractedSize(c.file)
	if extracted != model.UnknownTotal {
		res.Extracted = extracted
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
	fmt.Printf("# %s archive, %s\n", res.Format, humanize.IBytes(uint64(res.Size)))

	return nil
}
