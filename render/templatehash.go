package render

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// HashRenderTemplates computes a SHA-256 hash of every file under dir,
// in sorted order so the hash is deterministic; a change to any file's
// path or content changes the hash, which suits it to an ETag-style
// cache-busting suffix for the page-chrome templates (C7). The server
// does not call it or HashFS.
func HashRenderTemplates(dir string) (string, error) {
	return HashFS(os.DirFS(dir))
}

// HashFS is HashRenderTemplates generalized to any fs.FS, for the
// embedded (compiled-in) template tree internal/embedded serves, which
// has no on-disk directory to os.DirFS.
func HashFS(fsys fs.FS) (string, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking render templates dir: %w", err)
	}

	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		h.Write([]byte(path))

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		h.Write(data)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
