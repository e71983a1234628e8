// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/choria-io/archinstall/model"
)

// Delete removes an installed file or directory tree. A path that does not exist is not an
// error. The observer receives status followed by Completed or Failed
func Delete(path string, observer model.Observer) error {
	if observer == nil {
		observer = model.NopObserver{}
	}

	if strings.TrimSpace(path) == "" {
		err := fmt.Errorf("%w: path is required", model.ErrInvalidArgument)
		observer.Failed(err)
		return err
	}

	observer.Status(fmt.Sprintf("Deleting: %s", path))

	_, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = nil
	case err == nil:
		err = os.RemoveAll(path)
	}

	if err != nil {
		observer.Failed(err)
		return err
	}

	observer.Status("Deleted.")
	observer.Completed()

	return nil
}
