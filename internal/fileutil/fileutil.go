package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it into place so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RecordingArtifacts lists the files that belong to a recording at path: the
// file itself, its screenshot (path.png), its index (path.<indexExt>) and any
// sibling whose name starts with the recording's name up to and including the
// last underscore. Only files that exist are returned, sorted and unique.
func RecordingArtifacts(path, indexExt string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		if !Exists(candidate) {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	add(path)
	add(path + ".png")
	if ext := strings.TrimPrefix(strings.TrimSpace(indexExt), "."); ext != "" {
		add(path + "." + ext)
	}

	siblings, err := PrefixSiblings(path)
	if err != nil {
		sort.Strings(out)
		return out, err
	}
	for _, sibling := range siblings {
		add(sibling)
	}
	sort.Strings(out)
	return out, nil
}

// PrefixSiblings returns the files next to path whose names start with the
// base name of path cut after its last underscore. A name without an
// underscore has no siblings.
func PrefixSiblings(path string) ([]string, error) {
	dir, name := filepath.Split(path)
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return nil, nil
	}
	prefix := name[:idx+1]
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == name || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out, nil
}
