//go:build darwin

package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FileWatcher reports writes to individual files through kqueue.
type FileWatcher struct {
	kq       int
	mu       sync.Mutex
	watchMap map[int]string
	debounce *debouncer
	closed   bool
}

// NewFileWatcher creates a watcher that calls onChange once per burst of
// writes to a watched file. A zero delay means DefaultDebounce.
func NewFileWatcher(delay time.Duration, onChange func(string)) (*FileWatcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("watch: kqueue: %w", err)
	}
	return &FileWatcher{
		kq:       kq,
		watchMap: make(map[int]string),
		debounce: newDebouncer(delay, onChange),
	}, nil
}

func (fw *FileWatcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := fw.watch(absPath); err != nil {
		return fmt.Errorf("watch: add %s: %w", absPath, err)
	}
	return nil
}

func (fw *FileWatcher) watch(absPath string) error {
	fd, err := unix.Open(absPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	event := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_ATTRIB | unix.NOTE_RENAME | unix.NOTE_DELETE,
	}
	if _, err := unix.Kevent(fw.kq, []unix.Kevent_t{event}, nil, nil); err != nil {
		unix.Close(fd)
		return err
	}
	fw.mu.Lock()
	fw.watchMap[fd] = absPath
	fw.mu.Unlock()
	return nil
}

// Watch reads events until ctx is done or the watcher is closed.
func (fw *FileWatcher) Watch(ctx context.Context) error {
	events := make([]unix.Kevent_t, 16)
	timeout := unix.NsecToTimespec(int64(100 * time.Millisecond))
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fw.isClosed() {
			return nil
		}
		n, err := unix.Kevent(fw.kq, nil, events, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if fw.isClosed() {
				return nil
			}
			return fmt.Errorf("watch: read events: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)
			fw.mu.Lock()
			path := fw.watchMap[fd]
			replaced := events[i].Fflags&(unix.NOTE_RENAME|unix.NOTE_DELETE) != 0
			if replaced {
				delete(fw.watchMap, fd)
			}
			fw.mu.Unlock()
			if path == "" {
				continue
			}
			if replaced {
				unix.Close(fd)
				if err := rewatch(path, fw.watch); err != nil {
					return err
				}
			}
			fw.debounce.trigger(path)
		}
	}
}

func (fw *FileWatcher) isClosed() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.closed
}

func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	for fd := range fw.watchMap {
		unix.Close(fd)
	}
	fw.mu.Unlock()
	fw.debounce.stop()
	return unix.Close(fw.kq)
}
