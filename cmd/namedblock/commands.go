package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"namedblock/rewriter-go/pkg/driver"
)

type fileFlags struct {
	write   bool
	changed bool
	paths   []string
}

func parseFileFlags(command string, args []string, allowWrite bool) (fileFlags, error) {
	var flags fileFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			flags.paths = append(flags.paths, args[i+1:]...)
			return flags, nil
		case (arg == "--write" || arg == "-w") && allowWrite:
			flags.write = true
		case arg == "--changed":
			flags.changed = true
		case strings.HasPrefix(arg, "-"):
			return flags, fmt.Errorf("%s: unknown flag %s", command, arg)
		default:
			flags.paths = append(flags.paths, arg)
		}
	}
	return flags, nil
}

func selectFiles(cfg *driver.Config, flags fileFlags) ([]string, error) {
	if !flags.changed {
		return cfg.CollectFiles(flags.paths)
	}
	roots := flags.paths
	if len(roots) == 0 {
		roots = []string{"."}
	}
	seen := make(map[string]struct{})
	var files []string
	for _, root := range roots {
		changed, err := cfg.ChangedFiles(root)
		if err != nil {
			return nil, err
		}
		for _, path := range changed {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func runRewrite(args []string, opts globalOptions) int {
	flags, err := parseFileFlags("rewrite", args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	return processFiles(flags, opts, true)
}

func runCheck(args []string, opts globalOptions) int {
	flags, err := parseFileFlags("check", args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	return processFiles(flags, opts, false)
}

func processFiles(flags fileFlags, opts globalOptions, emit bool) int {
	engine, err := loadEngine(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	defer engine.Close()

	files, err := selectFiles(engine.Config(), flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}

	code := exitOK
	for _, path := range files {
		res, err := engine.ProcessFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
			code = worse(code, exitFailure)
			continue
		}
		if res.Failed() {
			code = worse(code, reportDiagnostics(res))
			continue
		}
		if !emit {
			continue
		}
		if flags.write {
			if _, err := driver.WriteResult(res); err != nil {
				fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
				code = worse(code, exitFailure)
			}
			continue
		}
		if len(files) > 1 {
			if res.Sites == 0 {
				continue
			}
			fmt.Fprintf(os.Stdout, "// %s\n", path)
		}
		os.Stdout.Write(res.Output)
	}
	return code
}

func runExpand(args []string, opts globalOptions) int {
	var labels []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--label":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "namedblock: --label expects a value")
				return exitFailure
			}
			labels = append(labels, args[i+1])
			i++
		case strings.HasPrefix(arg, "--label="):
			labels = append(labels, strings.TrimPrefix(arg, "--label="))
		default:
			fmt.Fprintf(os.Stderr, "namedblock: expand does not take arguments (received %s)\n", strings.Join(args[i:], " "))
			return exitFailure
		}
	}

	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: read stdin: %v\n", err)
		return exitFailure
	}
	engine, err := loadEngine(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	defer engine.Close()

	res, err := engine.ExpandFragment(string(src), labels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	if res.Failed() {
		return reportDiagnostics(res)
	}
	os.Stdout.Write(res.Output)
	return exitOK
}

func runWatch(args []string, opts globalOptions) int {
	flags, err := parseFileFlags("watch", args, false)
	if err != nil || flags.changed {
		if err == nil {
			err = fmt.Errorf("watch: --changed is not supported")
		}
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	engine, err := loadEngine(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	defer engine.Close()

	files, err := engine.Config().CollectFiles(flags.paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "namedblock: watch: no files to watch")
		return exitFailure
	}

	var mu sync.Mutex
	rewriteInPlace := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		res, err := engine.ProcessFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
			return
		}
		if res.Failed() {
			reportDiagnostics(res)
			return
		}
		written, err := driver.WriteResult(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
			return
		}
		if written {
			fmt.Fprintf(os.Stderr, "namedblock: rewrote %s\n", path)
		}
	}

	watcher, err := driver.NewFileWatcher(driver.DefaultDebounce, rewriteInPlace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	defer watcher.Close()
	for _, path := range files {
		if err := watcher.AddFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
			return exitFailure
		}
		rewriteInPlace(path)
	}
	fmt.Fprintf(os.Stderr, "namedblock: watching %d file(s)\n", len(files))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	return exitOK
}
