// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"fmt"
	"regexp"

	"github.com/choria-io/archinstall/model"
)

// Definition describes one cache: the directory it lives in below the cache root and the marker
// directory that has to exist in the extracted tree for the cache to be usable
type Definition struct {
	// Name is the directory below the cache root, also used in logs and metrics
	Name string `json:"name" yaml:"name"`
	// Marker is a directory name searched recursively to decide readiness
	Marker string `json:"marker" yaml:"marker"`
	// Label is a human friendly name used in status messages, defaults to Name
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

var (
	// AndroidNativeLibs caches the Android native library archive, ready once jniLibs exists
	AndroidNativeLibs = Definition{Name: "android-native-libs", Marker: "jniLibs", Label: "Android"}

	// AppleFrameworks caches the Apple xcframework archive
	AppleFrameworks = Definition{Name: "apple-frameworks", Marker: "sherpa-onnx.xcframework", Label: "iOS"}

	// Presets are the built in definitions by name
	Presets = map[string]Definition{
		AndroidNativeLibs.Name: AndroidNativeLibs,
		AppleFrameworks.Name:   AppleFrameworks,
	}

	validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

// Validate ensures the definition can be used to create a Cache
func (d Definition) Validate() error {
	if !validName.MatchString(d.Name) {
		return fmt.Errorf("%w: invalid cache name %q", model.ErrInvalidArgument, d.Name)
	}

	if d.Marker == "" {
		return fmt.Errorf("%w: cache %s requires a marker", model.ErrInvalidArgument, d.Name)
	}

	return nil
}

func (d Definition) label() string {
	if d.Label == "" {
		return d.Name
	}

	return d.Label
}
