package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// packagedDataDir is created by the system packages; txq uses it only when
// it already exists.
const packagedDataDir = "/var/lib/txq"

// hostEnv is the slice of the host that decides the default data directory.
type hostEnv struct {
	goos   string
	home   string
	getenv func(string) string
	isDir  func(string) bool
}

// DefaultDataDir returns where the server keeps its store when no data
// directory is configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return hostEnv{goos: runtime.GOOS, home: home, getenv: os.Getenv, isDir: isDir}.dataDir()
}

func (h hostEnv) dataDir() string {
	if h.home == "" {
		return "./data"
	}
	switch h.goos {
	case "darwin":
		return filepath.Join(h.home, "Library", "Application Support", "txq")
	case "windows":
		if local := h.getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "txq")
		}
		return filepath.Join(h.home, "AppData", "Local", "txq")
	}
	if xdg := h.getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "txq")
	}
	if h.isDir(packagedDataDir) {
		return packagedDataDir
	}
	return filepath.Join(h.home, ".local", "share", "txq")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
