//go:build linux

package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_MOVE_SELF | unix.IN_DELETE_SELF

// FileWatcher reports writes to individual files through inotify.
type FileWatcher struct {
	fd       int
	mu       sync.Mutex
	watchMap map[int]string
	debounce *debouncer
	closed   bool
}

// NewFileWatcher creates a watcher that calls onChange once per burst of
// writes to a watched file. A zero delay means DefaultDebounce.
func NewFileWatcher(delay time.Duration, onChange func(string)) (*FileWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("watch: inotify_init: %w", err)
	}
	return &FileWatcher{
		fd:       fd,
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
	wd, err := unix.InotifyAddWatch(fw.fd, absPath, watchMask)
	if err != nil {
		return err
	}
	fw.mu.Lock()
	fw.watchMap[wd] = absPath
	fw.mu.Unlock()
	return nil
}

// replace drops the watch on a renamed or deleted inode and follows the new
// file at the same path. A rename produces no IN_IGNORED, so the old
// descriptor is removed here.
func (fw *FileWatcher) replace(wd int, path string) error {
	fw.mu.Lock()
	delete(fw.watchMap, wd)
	fw.mu.Unlock()
	// Fails with EINVAL when the kernel already dropped a deleted inode.
	_, _ = unix.InotifyRmWatch(fw.fd, uint32(wd))
	return rewatch(path, fw.watch)
}

// Watch reads events until ctx is done or the watcher is closed.
func (fw *FileWatcher) Watch(ctx context.Context) error {
	buf := make([]byte, (unix.SizeofInotifyEvent+256)*16)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fw.isClosed() {
			return nil
		}
		n, err := unix.Read(fw.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			if fw.isClosed() {
				return nil
			}
			return fmt.Errorf("watch: read events: %w", err)
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)

			fw.mu.Lock()
			path := fw.watchMap[int(event.Wd)]
			if event.Mask&unix.IN_IGNORED != 0 {
				delete(fw.watchMap, int(event.Wd))
			}
			fw.mu.Unlock()
			if path == "" {
				continue
			}
			if event.Mask&(unix.IN_MOVE_SELF|unix.IN_DELETE_SELF) != 0 {
				if err := fw.replace(int(event.Wd), path); err != nil {
					return err
				}
			}
			if event.Mask&watchMask != 0 {
				fw.debounce.trigger(path)
			}
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
	fw.mu.Unlock()
	fw.debounce.stop()
	return unix.Close(fw.fd)
}
