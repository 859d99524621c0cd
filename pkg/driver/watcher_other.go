//go:build !linux && !darwin

package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const pollInterval = 250 * time.Millisecond

// FileWatcher polls modification times on platforms without inotify or
// kqueue.
type FileWatcher struct {
	mu       sync.Mutex
	files    map[string]time.Time
	debounce *debouncer
	done     chan struct{}
	once     sync.Once
}

func NewFileWatcher(delay time.Duration, onChange func(string)) (*FileWatcher, error) {
	return &FileWatcher{
		files:    make(map[string]time.Time),
		debounce: newDebouncer(delay, onChange),
		done:     make(chan struct{}),
	}, nil
}

func (fw *FileWatcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("watch: add %s: %w", absPath, err)
	}
	fw.mu.Lock()
	fw.files[absPath] = info.ModTime()
	fw.mu.Unlock()
	return nil
}

func (fw *FileWatcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fw.done:
			return nil
		case <-ticker.C:
		}
		fw.mu.Lock()
		var changed []string
		for path, seen := range fw.files {
			info, err := os.Stat(path)
			if err != nil || info.ModTime().Equal(seen) {
				continue
			}
			fw.files[path] = info.ModTime()
			changed = append(changed, path)
		}
		fw.mu.Unlock()
		for _, path := range changed {
			fw.debounce.trigger(path)
		}
	}
}

func (fw *FileWatcher) Close() error {
	fw.once.Do(func() {
		close(fw.done)
		fw.debounce.stop()
	})
	return nil
}
