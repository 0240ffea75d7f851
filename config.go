package gjsdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPrompt is the readline prompt of the console.
const DefaultPrompt = "gjsdb> "

// Config is the on-disk configuration of the debugger front-end.
type Config struct {
	Prompt      string   `yaml:"prompt"`
	Bootstrap   string   `yaml:"bootstrap"`
	ModulePaths []string `yaml:"modulePaths"`
	Breakpoints []string `yaml:"breakpoints"`
	StopOnEntry bool     `yaml:"stopOnEntry"`
	Color       bool     `yaml:"color"`
	LogLevel    string   `yaml:"logLevel"`
	HitProfile  string   `yaml:"hitProfile"`
}

func DefaultConfig() *Config {
	return &Config{
		Prompt:   DefaultPrompt,
		Color:    true,
		LogLevel: "warn",
	}
}

// LoadConfig reads a YAML config file. Keys not listed in Config are errors.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, bp := range cfg.Breakpoints {
		if _, err := ParseLocation(bp); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg, nil
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid logLevel %q", c.LogLevel)
	}
	return l, nil
}

// Location is a parsed breakpoint location: FUNC, URL:LINE or /RE/:LINE.
type Location struct {
	URL          string
	Line         int
	FunctionName string
	Condition    string
}

// ParseLocation parses a breakpoint specification, optionally followed by
// "if EXPR".
func ParseLocation(spec string) (Location, error) {
	var loc Location
	spec = strings.TrimSpace(spec)
	if i := strings.Index(spec, " if "); i >= 0 {
		loc.Condition = strings.TrimSpace(spec[i+4:])
		spec = strings.TrimSpace(spec[:i])
	}
	if spec == "" {
		return loc, errors.New("empty breakpoint location")
	}
	if i := strings.LastIndexByte(spec, ':'); i > 0 {
		line, err := strconv.Atoi(spec[i+1:])
		if err == nil {
			if line < 1 {
				return loc, fmt.Errorf("invalid line in breakpoint %q", spec)
			}
			loc.URL, loc.Line = spec[:i], line
			return loc, nil
		}
	}
	if strings.ContainsAny(spec, " :/") {
		return loc, fmt.Errorf("invalid breakpoint location %q", spec)
	}
	loc.FunctionName = spec
	return loc, nil
}

// Apply sets the breakpoint on dbg and returns its ID.
func (l Location) Apply(dbg *Debugger) (int, error) {
	if l.FunctionName != "" {
		return dbg.SetFunctionBreakpoint(l.FunctionName, l.Condition)
	}
	return dbg.SetBreakpoint(l.URL, l.Line, l.Condition)
}
