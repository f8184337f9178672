package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// LatestFile returns the most recently modified eligible file in dir.
// Hidden names and anything that is not a regular file after following
// symlinks are skipped. On equal modification times the first entry in
// listing order (by name) wins. ok is false when nothing is eligible.
func LatestFile(fs afero.Fs, dir string) (path string, ok bool, err error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", false, err
	}

	var latest time.Time
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		info := entry
		if entry.Mode()&os.ModeSymlink != 0 {
			resolved, statErr := fs.Stat(full)
			if statErr != nil {
				continue
			}
			info = resolved
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if !ok || info.ModTime().After(latest) {
			path = full
			latest = info.ModTime()
			ok = true
		}
	}
	return path, ok, nil
}
