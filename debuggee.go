package gjsdb

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const nativeSrcName = "<native>"

// Debuggee owns the runtime of the program being debugged. Scripts run
// through it are instrumented so that an attached Debugger sees every
// statement.
type Debuggee struct {
	rt       *goja.Runtime
	registry *require.Registry
	logger   *slog.Logger

	scripts  []*Script
	byURL    map[string]*Script
	sites    []*Site
	debugger *Debugger
}

// Frame is one entry of the debuggee call stack.
type Frame struct {
	FunctionName string
	URL          string
	Line         int
	Column       int
}

// NewDebuggee creates the debuggee runtime with require() and console enabled.
// Modules loaded from files through the default registry are instrumented
// like scripts; a registry given with WithRegistry loads them as they are.
func NewDebuggee(opts ...Option) *Debuggee {
	o := buildOptions(opts)
	d := &Debuggee{
		rt:       goja.New(),
		registry: o.registry,
		logger:   o.logger,
		byURL:    make(map[string]*Script),
	}
	if d.registry == nil {
		d.registry = require.NewRegistry(
			require.WithGlobalFolders(o.modulePaths...),
			require.WithLoader(d.loadModule),
		)
		d.registry.RegisterNativeModule("console", console.RequireWithPrinter(logPrinter{o.logger.With("realm", "debuggee")}))
	}
	d.registry.Enable(d.rt)
	console.Enable(d.rt)

	if err := defineHook(d.rt, func(call goja.FunctionCall) goja.Value {
		d.hook(call.Argument(0).ToInteger())
		return goja.Undefined()
	}); err != nil {
		panic(err)
	}
	return d
}

// defineHook installs fn as the hidden global instrumented code calls.
func defineHook(rt *goja.Runtime, fn func(goja.FunctionCall) goja.Value) error {
	return rt.GlobalObject().DefineDataProperty(hookName, rt.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// Runtime returns the debuggee runtime.
func (d *Debuggee) Runtime() *goja.Runtime {
	return d.rt
}

// Registry returns the module registry the debuggee resolves require() through.
func (d *Debuggee) Registry() *require.Registry {
	return d.registry
}

// Debugger returns the attached debugger, if any.
func (d *Debuggee) Debugger() *Debugger {
	return d.debugger
}

// Scripts returns the loaded scripts in load order.
func (d *Debuggee) Scripts() []*Script {
	return d.scripts
}

// Script looks up a loaded script by URL.
func (d *Debuggee) Script(url string) *Script {
	return d.byURL[url]
}

// Interrupt stops the running script. It is safe to call from any goroutine.
func (d *Debuggee) Interrupt(v any) {
	d.rt.Interrupt(v)
}

// RunScript instruments and runs src under the given name.
func (d *Debuggee) RunScript(name, src string) (goja.Value, error) {
	prg, err := d.load(name, src, "")
	if err != nil {
		return nil, err
	}
	return d.run(prg)
}

// RunFile reads, instruments and runs the script at path. A byte order mark
// selects the encoding; a sourceMappingURL comment attaches a source map.
func (d *Debuggee) RunFile(path string) (goja.Value, error) {
	src, err := readScript(path)
	if err != nil {
		return nil, err
	}
	prg, err := d.load(path, src, path)
	if err != nil {
		return nil, err
	}
	return d.run(prg)
}

func readScript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return decodeSource(f)
}

func decodeSource(r io.Reader) (string, error) {
	b, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Debuggee) load(name, src, path string) (*goja.Program, error) {
	script, prg, err := d.instrument(name, src)
	if err != nil {
		return nil, err
	}
	d.register(script, path)
	return prg, nil
}

// loadModule is the source loader of the default registry. It is also asked
// for external source maps, which are passed through untouched.
func (d *Debuggee) loadModule(path string) ([]byte, error) {
	b, err := require.DefaultSourceLoader(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".json", ".map":
		return b, nil
	}
	src, err := decodeSource(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	script, out := d.instrumentModule(path, src)
	if script != nil {
		d.register(script, path)
	}
	return []byte(out), nil
}

func (d *Debuggee) register(script *Script, path string) {
	if path != "" {
		if m, err := loadSourceMap(path, script.Source); err == nil {
			script.srcMap = m
		} else if !errors.Is(err, errNoSourceMap) {
			d.logger.Warn("ignoring source map", "script", script.URL, "error", err)
		}
	}
	d.scripts = append(d.scripts, script)
	d.byURL[script.URL] = script
	d.sites = append(d.sites, script.Sites...)
	d.logger.Debug("script loaded", "script", script.URL, "sites", len(script.Sites), "instrumented", script.Instrumented)
}

func (d *Debuggee) run(prg *goja.Program) (goja.Value, error) {
	v, err := d.rt.RunProgram(prg)
	d.rt.ClearInterrupt()
	if err != nil && d.debugger != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			d.debugger.reportException(ex)
		}
	}
	return v, err
}

func (d *Debuggee) hook(id int64) {
	if id < 0 || id >= int64(len(d.sites)) {
		return
	}
	site := d.sites[id]
	site.hits++
	if d.debugger != nil {
		d.debugger.onStatement(site)
	}
}

// stack returns the script frames of the current call stack, innermost first.
func (d *Debuggee) stack() []goja.StackFrame {
	frames := d.rt.CaptureCallStack(0, nil)
	for len(frames) > 0 && frames[0].SrcName() == nativeSrcName {
		frames = frames[1:]
	}
	return frames
}

// Frames describes the current call stack in source coordinates.
func (d *Debuggee) Frames() []Frame {
	stack := d.stack()
	frames := make([]Frame, 0, len(stack))
	for _, f := range stack {
		if f.SrcName() == nativeSrcName {
			continue
		}
		pos := f.Position()
		fr := Frame{
			FunctionName: f.FuncName(),
			URL:          f.SrcName(),
			Line:         pos.Line,
			Column:       pos.Column,
		}
		if s := d.byURL[fr.URL]; s != nil {
			fr.Column = s.sourceColumn(pos.Line, pos.Column)
			fr.URL, fr.Line, fr.Column = s.Original(Position{Line: fr.Line, Col: fr.Column})
		}
		frames = append(frames, fr)
	}
	return frames
}
