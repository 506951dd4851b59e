// Package locator finds map files along a search path of directories.
package locator

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/mapfile"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/config"
)

// AppDir is the directory name map files are installed under.
const AppDir = "conda-suggest"

// DefaultSearchPath returns the directories named by CONDA_SUGGEST_PATH, or,
// when it is unset, the user data directory followed by the installation
// prefix share directory.
func DefaultSearchPath() []string {
	if v := os.Getenv(config.SearchPathEnv); v != "" {
		return filepath.SplitList(v)
	}
	dirs := make([]string, 0, 2)
	if d := userDataDir(); d != "" {
		dirs = append(dirs, filepath.Join(d, AppDir))
	}
	if p := installPrefix(); p != "" {
		dirs = append(dirs, filepath.Join(p, "share", AppDir))
	}
	return dirs
}

// Resolve returns path when it is non-empty and DefaultSearchPath otherwise.
func Resolve(path []string) []string {
	if len(path) > 0 {
		return path
	}
	return DefaultSearchPath()
}

func userDataDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("LOCALAPPDATA")
	}
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share")
}

func installPrefix() string {
	if p := os.Getenv("CONDA_PREFIX"); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	// <prefix>/bin/conda-suggest
	return filepath.Dir(filepath.Dir(exe))
}

// ListMapFiles returns the *.map files of every directory in searchPath,
// non-recursively, in directory order and sorted by name within a directory.
// Missing directories contribute nothing, and files whose name is not
// <channel>.<subdir>.map are skipped with a warning.
func ListMapFiles(searchPath []string) []string {
	logger := slog.Default().With("component", "locator")
	paths := make([]string, 0)
	for _, dir := range searchPath {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("skipping unreadable search directory", "dir", dir, "error", err)
			}
			continue
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), mapfile.Ext) {
				continue
			}
			if _, _, err := mapfile.ParseName(entry.Name()); err != nil {
				logger.Warn("skipping map file with invalid name", "dir", dir, "error", err)
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	logger.Debug("map files located", "dirs", len(searchPath), "files", len(paths))
	return paths
}
