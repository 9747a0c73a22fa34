// Package fsutil holds the small path helpers shared by the catalog loader
// and the install pipeline.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading "~" or "~/" against the user's home directory.
// Other paths, including "~user", are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

var unsafeNameChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// SafeFileName turns a model reference such as "meditron:7b" into a single
// path element. Empty or dot-only names become "_".
func SafeFileName(name string) string {
	s := unsafeNameChars.Replace(strings.TrimSpace(name))
	if strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}

// WriteInDir writes data to dir/name, creating dir when missing, and returns
// the full path.
func WriteInDir(dir, name string, data []byte) (string, error) {
	dir, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, SafeFileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
