package gjsdb

import (
	"log/slog"

	"github.com/dop251/goja_nodejs/require"
)

var defaultOptions = options{}

// Option configures a Debuggee or a Realm. Options that do not apply to the
// value being built are ignored.
type Option interface {
	apply(*options)
}

type options struct {
	logger *slog.Logger

	// debuggee
	registry    *require.Registry
	modulePaths []string

	// realm
	bootstrapName string
	bootstrapSrc  string
	roots         *RootSet
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.roots == nil {
		o.roots = Roots
	}
	if o.bootstrapSrc == "" {
		o.bootstrapName = multiplexerScriptName
		o.bootstrapSrc = multiplexerSource
	}
	return o
}

// WithLogger sets the diagnostic sink. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

// WithRegistry makes the debuggee resolve modules through an existing registry.
// Modules it loads are not instrumented.
func WithRegistry(registry *require.Registry) Option {
	return newFuncOption(func(o *options) {
		o.registry = registry
	})
}

// WithModulePaths adds global folders to the debuggee's module search path.
// It has no effect when WithRegistry is also given.
func WithModulePaths(paths ...string) Option {
	return newFuncOption(func(o *options) {
		o.modulePaths = append(o.modulePaths, paths...)
	})
}

// WithBootstrap replaces the script that defines DebuggerMultiplexer.
func WithBootstrap(name, src string) Option {
	return newFuncOption(func(o *options) {
		o.bootstrapName = name
		o.bootstrapSrc = src
	})
}

// WithRootSet pins the realm's multiplexer in rs instead of the process-wide Roots.
func WithRootSet(rs *RootSet) Option {
	return newFuncOption(func(o *options) {
		o.roots = rs
	})
}
