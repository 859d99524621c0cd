package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  namedblock [--config <file>] [--verbose] rewrite [--write] [--changed] [paths...]")
	fmt.Fprintln(os.Stderr, "  namedblock [--config <file>] [--verbose] check [--changed] [paths...]")
	fmt.Fprintln(os.Stderr, "  namedblock [--config <file>] expand [--label 'name]... < fragment")
	fmt.Fprintln(os.Stderr, "  namedblock [--config <file>] [--verbose] watch [paths...]")
	fmt.Fprintln(os.Stderr, "  namedblock version")
	fmt.Fprintln(os.Stderr, "  namedblock help")
}
