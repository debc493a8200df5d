// Package config provides configuration loading and path utilities for the ledger.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// siblingPath returns path expanded, or name next to the database when path is empty.
func siblingPath(path, dbPath, name string) string {
	if path != "" {
		return ExpandPath(path)
	}
	return filepath.Join(filepath.Dir(dbPath), name)
}
