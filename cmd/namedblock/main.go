package main

import (
	"fmt"
	"os"
	"strings"

	"namedblock/rewriter-go/pkg/driver"
)

const cliToolVersion = "namedblock 0.1.0-dev"

const (
	exitOK          = 0
	exitDiagnostics = 1
	exitFailure     = 2
)

type globalOptions struct {
	configPath string
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitFailure
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "namedblock: %v\n", err)
		return exitFailure
	}
	if len(remaining) == 0 {
		printUsage()
		return exitFailure
	}

	switch remaining[0] {
	case "--help", "-h", "help":
		printUsage()
		return exitOK
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return exitOK
	case "rewrite":
		return runRewrite(remaining[1:], opts)
	case "check":
		return runCheck(remaining[1:], opts)
	case "expand":
		return runExpand(remaining[1:], opts)
	case "watch":
		return runWatch(remaining[1:], opts)
	default:
		fmt.Fprintf(os.Stderr, "namedblock: unknown command %q\n", remaining[0])
		printUsage()
		return exitFailure
	}
}

func parseGlobalFlags(args []string) (globalOptions, []string, error) {
	var opts globalOptions
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--config expects a value")
			}
			opts.configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
			if opts.configPath == "" {
				return opts, nil, fmt.Errorf("--config expects a value")
			}
		case arg == "--verbose", arg == "-v":
			opts.verbose = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return opts, remaining, nil
}

// loadEngine resolves the configuration relative to the working directory
// and builds an engine for it.
func loadEngine(opts globalOptions) (*driver.Engine, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := driver.ResolveConfig(opts.configPath, wd)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	var reporter driver.Reporter = driver.NopReporter{}
	if cfg.Verbose {
		reporter = driver.WriterReporter{W: os.Stderr, Prefix: "namedblock: "}
		if cfg.Path != "" {
			reporter.Printf("using config %s", cfg.Path)
		}
	}
	return driver.NewEngine(cfg, reporter)
}

// reportDiagnostics prints a result's diagnostics and returns the exit code
// they imply.
func reportDiagnostics(res *driver.Result) int {
	if res == nil || !res.Failed() {
		return exitOK
	}
	for _, d := range res.Diagnostics {
		if d.Internal {
			fmt.Fprintf(os.Stderr, "%s (internal)\n", d)
			continue
		}
		fmt.Fprintln(os.Stderr, d)
	}
	if res.Internal() {
		return exitFailure
	}
	return exitDiagnostics
}

func worse(a, b int) int {
	if b > a {
		return b
	}
	return a
}
