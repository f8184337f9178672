// Package fsutil normalizes user-supplied paths before they key sessions.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyPath = errors.New("path is empty")

// CleanWatchPath returns path as a cleaned absolute path so that spellings
// such as "logs/app.log" and "./logs//app.log" name the same target. A
// leading "~/" expands to the home directory. The target need not exist.
func CleanWatchPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
