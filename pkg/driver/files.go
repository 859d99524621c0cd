package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CollectFiles expands paths into the sorted list of source files to
// process. Directories are walked; files named explicitly are kept even
// when their extension does not match.
func (c *Config) CollectFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("driver: stat %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && c.Excluded(path) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && d.Name() == ".git" {
					return fs.SkipDir
				}
				return nil
			}
			if c.Matches(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("driver: traverse %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Matches reports whether path has one of the configured extensions.
func (c *Config) Matches(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range c.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Excluded reports whether any path segment, or the path itself, matches
// an exclude pattern.
func (c *Config) Excluded(path string) bool {
	if len(c.Exclude) == 0 {
		return false
	}
	slashed := filepath.ToSlash(filepath.Clean(path))
	segments := strings.Split(slashed, "/")
	for _, pattern := range c.Exclude {
		if ok, _ := filepath.Match(pattern, slashed); ok {
			return true
		}
		for _, seg := range segments {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}
