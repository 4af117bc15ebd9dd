// Package registry locates the staged model artifact on local storage.
// The artifact stager (S3 download, volume mount, etc.) runs before this
// process and deposits *.gguf files into the models directory; this package
// only resolves the path the engine loads from.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Resolve picks the model artifact to load. If name is non-empty it must
// match a *.gguf file in dir (the extension may be omitted). With an empty
// name, the single artifact is used, or the most recently staged one when
// several are present.
func Resolve(dir, name string) (string, error) {
	base, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("read models dir: %w", err)
	}

	type artifact struct {
		name string
		mod  time.Time
	}
	var found []artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, artifact{name: e.Name(), mod: info.ModTime()})
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no *.gguf artifacts staged in %s", abs)
	}

	if name != "" {
		want := name
		if !strings.HasSuffix(strings.ToLower(want), ".gguf") {
			want += ".gguf"
		}
		for _, a := range found {
			if a.name == want {
				return filepath.Join(abs, a.name), nil
			}
		}
		names := make([]string, len(found))
		for i, a := range found {
			names[i] = a.name
		}
		return "", fmt.Errorf("model %q not staged in %s (available: %s)", name, abs, strings.Join(names, ", "))
	}

	best := found[0]
	for _, a := range found[1:] {
		if a.mod.After(best.mod) {
			best = a
		}
	}
	return filepath.Join(abs, best.name), nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
