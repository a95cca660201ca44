// Package config loads settings that are more than a single viper key:
// business policy, integration configs and path expansion.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands $VAR references and a leading ~. Without a resolvable
// home directory the ~ is left in place.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
