package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ensure canonical runtime folder layout exists under root, not symlink, restrictive perms, writable
func EnsureStateDirs(root string) error {
	p := PathsFor(root)
	for _, dir := range []string{p.Store, p.Logs, p.Identity, p.Telemetry, p.Tmp} {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", dir, err)
		}

		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
		}

		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}

		// writable check
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return nil
}

var (
	PathsVar Paths
	initOnce sync.Once
	initErr  error
)

// safe to call multiple times; the layout is created once
func Init(root string) error {
	initOnce.Do(func() {
		path := strings.TrimSpace(root)
		if path == "" {
			path = "./data"
		}
		path = filepath.Clean(path)
		PathsVar = PathsFor(path)
		initErr = EnsureStateDirs(path)
	})
	return initErr
}
