// Package config provides shared configuration helpers for music-tools.
package config

import (
	"os"
	"path/filepath"
)

// DefaultDBFileName is the name of the embedded store file inside the
// music-tools home directory.
const DefaultDBFileName = "library_index.db"

// Env returns the value of the environment variable key, or def if unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Home returns the music-tools home directory: MUSIC_TOOLS_HOME if set,
// otherwise "<user home>/.music-tools".
func Home() string {
	if v := os.Getenv("MUSIC_TOOLS_HOME"); v != "" {
		return v
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, ".music-tools")
}

// DatabasePath returns the default path to the embedded store file,
// honoring MUSIC_TOOLS_HOME.
func DatabasePath() string {
	return filepath.Join(Home(), DefaultDBFileName)
}
