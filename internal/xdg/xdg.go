// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package xdg resolves XDG Base Directory paths for yggauth.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "yggauth"

// configFileName is looked up in ConfigDir when no --config is given.
const configFileName = "config.yaml"

// LookupEnv reads one environment variable. Nil means os.LookupEnv.
type LookupEnv func(string) (string, bool)

func (l LookupEnv) get(key string) string {
	if l == nil {
		l = os.LookupEnv
	}
	v, _ := l(key)
	return v
}

// ConfigDir returns the yggauth config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(lookup LookupEnv) string {
	base := lookup.get("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(lookup.get("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path when that file exists,
// or "" otherwise.
func ConfigFile(lookup LookupEnv) string {
	path := filepath.Join(ConfigDir(lookup), configFileName)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}
