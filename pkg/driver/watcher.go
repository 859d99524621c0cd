package driver

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDebounce is how long a file must stay quiet before its change is
// reported.
const DefaultDebounce = 500 * time.Millisecond

const (
	rewatchAttempts = 5
	rewatchDelay    = 50 * time.Millisecond
)

// rewatch watches path again after its file was renamed or deleted. Editors
// that save by rename can leave the path empty for a moment, so a few
// attempts are made before giving up.
func rewatch(path string, watch func(string) error) error {
	var err error
	for attempt := 0; attempt < rewatchAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(rewatchDelay)
		}
		if err = watch(path); err == nil {
			return nil
		}
	}
	return fmt.Errorf("watch: re-add %s: %w", path, err)
}

// debouncer coalesces bursts of events per path.
type debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timers   map[string]*time.Timer
	onChange func(string)
}

func newDebouncer(delay time.Duration, onChange func(string)) *debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer), onChange: onChange}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[path]; exists {
		timer.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.onChange(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
}
