package driver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Reporter receives verbose progress lines.
type Reporter interface {
	Printf(format string, args ...any)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Printf(string, ...any) {}

// WriterReporter writes one prefixed line per call.
type WriterReporter struct {
	W      io.Writer
	Prefix string
}

func (r WriterReporter) Printf(format string, args ...any) {
	if r.W == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	fmt.Fprint(r.W, r.Prefix+line)
}

// displayPath shortens path relative to the working directory when it
// lives below it.
func displayPath(path string) string {
	if path == "" {
		return "<stdin>"
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
