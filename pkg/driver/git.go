package driver

import (
	"fmt"
	"path/filepath"
	"sort"

	git "github.com/go-git/go-git/v5"
)

// ChangedFiles lists source files that are modified, staged or untracked
// in the git worktree containing dir. Deleted files are skipped. Paths are
// absolute and sorted.
func (c *Config) ChangedFiles(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("driver: resolve %s: %w", dir, err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("driver: open repository at %s: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("driver: worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("driver: status: %w", err)
	}
	root := wt.Filesystem.Root()

	var files []string
	for rel, st := range status {
		if st == nil {
			continue
		}
		if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree != git.Untracked) {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		if !c.Matches(path) || c.Excluded(filepath.FromSlash(rel)) {
			continue
		}
		if !withinDir(abs, path) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
