package driver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"namedblock/rewriter-go/pkg/parser"
	"namedblock/rewriter-go/pkg/rewrite"
)

// DefaultConfigName is looked up in the working directory when no config
// path is given.
const DefaultConfigName = "namedblock.yml"

// Config models namedblock.yml after environment overrides.
type Config struct {
	Path         string
	Macro        string
	IgnoreMarker string
	SymbolPrefix string
	Closures     string
	MaxDepth     int
	Extensions   []string
	Exclude      []string
	Verbose      bool
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Macro:        parser.DefaultMacro,
		IgnoreMarker: parser.DefaultIgnoreMarker,
		SymbolPrefix: rewrite.DefaultSymbolPrefix,
		Closures:     rewrite.ClosuresStrict.String(),
		MaxDepth:     rewrite.DefaultMaxDepth,
		Extensions:   []string{".rs"},
		Exclude:      []string{"target"},
	}
}

// LoadConfig parses a config file from disk. Missing keys keep their
// defaults; unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw configDisk
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", abs, err)
	}

	cfg := raw.toConfig()
	cfg.Path = abs
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", abs, err)
	}
	return cfg, nil
}

// ResolveConfig loads the config named by path, by NAMEDBLOCK_CONFIG, or
// DefaultConfigName in dir when it exists, then applies environment
// overrides. With no file at all the defaults are used.
func ResolveConfig(path, dir string) (*Config, error) {
	if path == "" {
		path = env.Str("NAMEDBLOCK_CONFIG")
	}
	var cfg *Config
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		candidate := filepath.Join(dir, DefaultConfigName)
		loaded, err := LoadConfig(candidate)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			cfg = DefaultConfig()
		default:
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays NAMEDBLOCK_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	c.Macro = env.Str("NAMEDBLOCK_MACRO", c.Macro)
	c.IgnoreMarker = env.Str("NAMEDBLOCK_IGNORE_MARKER", c.IgnoreMarker)
	c.SymbolPrefix = env.Str("NAMEDBLOCK_SYMBOL_PREFIX", c.SymbolPrefix)
	c.Closures = env.Str("NAMEDBLOCK_CLOSURES", c.Closures)
	c.MaxDepth = env.Int("NAMEDBLOCK_MAX_DEPTH", c.MaxDepth)
	if env.Has("NAMEDBLOCK_VERBOSE") {
		c.Verbose = env.Bool("NAMEDBLOCK_VERBOSE")
	}
	if err := c.normalize(); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// WriteConfig serialises the config back to disk.
func WriteConfig(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if path == "" {
		if cfg.Path == "" {
			return fmt.Errorf("config: missing path")
		}
		path = cfg.Path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolve %s: %w", path, err)
	}
	cfg.Path = abs
	if err := cfg.normalize(); err != nil {
		return fmt.Errorf("config: %s: %w", abs, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.toDisk()); err != nil {
		return fmt.Errorf("config: marshal %s: %w", abs, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encoder close: %w", err)
	}
	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", abs, err)
	}
	return nil
}

// ParserOptions returns the front-end settings.
func (c *Config) ParserOptions() parser.Options {
	return parser.Options{Macro: c.Macro, IgnoreMarker: c.IgnoreMarker, MaxDepth: c.MaxDepth}
}

// RewriteOptions returns the rewriter settings. The closure mode is
// validated by normalize, so a parse failure here falls back to strict.
func (c *Config) RewriteOptions() rewrite.Options {
	mode, _ := rewrite.ParseClosureMode(c.Closures)
	return rewrite.Options{Closures: mode, MaxDepth: c.MaxDepth}
}

func (c *Config) normalize() error {
	defaults := DefaultConfig()
	c.Macro = strings.TrimSpace(c.Macro)
	if c.Macro == "" {
		c.Macro = defaults.Macro
	}
	if !isIdent(c.Macro) {
		return fmt.Errorf("macro %q is not an identifier", c.Macro)
	}
	c.IgnoreMarker = strings.TrimSpace(c.IgnoreMarker)
	if c.IgnoreMarker == "" {
		c.IgnoreMarker = defaults.IgnoreMarker
	}
	if !isIdent(c.IgnoreMarker) {
		return fmt.Errorf("ignore_marker %q is not an identifier", c.IgnoreMarker)
	}
	c.SymbolPrefix = strings.TrimSpace(c.SymbolPrefix)
	if c.SymbolPrefix == "" {
		c.SymbolPrefix = defaults.SymbolPrefix
	}
	if !isIdent(c.SymbolPrefix) {
		return fmt.Errorf("symbol_prefix %q is not an identifier", c.SymbolPrefix)
	}
	mode, err := rewrite.ParseClosureMode(c.Closures)
	if err != nil {
		return err
	}
	c.Closures = mode.String()
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaults.MaxDepth
	}

	exts := make([]string, 0, len(c.Extensions))
	seen := make(map[string]bool)
	for _, ext := range c.Extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		exts = defaults.Extensions
	}
	sort.Strings(exts)
	c.Extensions = exts

	exclude := c.Exclude[:0:0]
	for _, pattern := range c.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		exclude = append(exclude, pattern)
	}
	c.Exclude = exclude
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

type configDisk struct {
	Macro        string   `yaml:"macro,omitempty"`
	IgnoreMarker string   `yaml:"ignore_marker,omitempty"`
	SymbolPrefix string   `yaml:"symbol_prefix,omitempty"`
	Closures     string   `yaml:"closures,omitempty"`
	MaxDepth     int      `yaml:"max_depth,omitempty"`
	Extensions   []string `yaml:"extensions,omitempty"`
	Exclude      []string `yaml:"exclude"`
	Verbose      bool     `yaml:"verbose,omitempty"`
}

func (d configDisk) toConfig() *Config {
	cfg := DefaultConfig()
	if d.Macro != "" {
		cfg.Macro = d.Macro
	}
	if d.IgnoreMarker != "" {
		cfg.IgnoreMarker = d.IgnoreMarker
	}
	if d.SymbolPrefix != "" {
		cfg.SymbolPrefix = d.SymbolPrefix
	}
	if d.Closures != "" {
		cfg.Closures = d.Closures
	}
	if d.MaxDepth != 0 {
		cfg.MaxDepth = d.MaxDepth
	}
	if d.Extensions != nil {
		cfg.Extensions = append([]string(nil), d.Extensions...)
	}
	if d.Exclude != nil {
		cfg.Exclude = append([]string(nil), d.Exclude...)
	}
	cfg.Verbose = d.Verbose
	return cfg
}

func (c *Config) toDisk() configDisk {
	exclude := append([]string{}, c.Exclude...)
	return configDisk{
		Macro:        c.Macro,
		IgnoreMarker: c.IgnoreMarker,
		SymbolPrefix: c.SymbolPrefix,
		Closures:     c.Closures,
		MaxDepth:     c.MaxDepth,
		Extensions:   append([]string(nil), c.Extensions...),
		Exclude:      exclude,
		Verbose:      c.Verbose,
	}
}
