package gjsdb

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// Realm is the debugger side of a session: a runtime of its own that sees
// the debuggee only through proxies and the Debugger capability.
type Realm struct {
	rt       *goja.Runtime
	debuggee *Debuggee
	logger   *slog.Logger
	roots    *RootSet

	bridge        *bridge
	debuggeeProxy *goja.Object
	dbg           *Debugger
	helpers       *Helpers
	muxCtor       goja.Constructor
	mux           *Pinned
	closed        bool
}

// NewRealm builds a debugger realm for debuggee. Every failure is reported as
// a *RealmSetupError; nothing is left attached to the debuggee on failure.
func NewRealm(debuggee *Debuggee, opts ...Option) (*Realm, error) {
	o := buildOptions(opts)
	r := &Realm{
		rt:       goja.New(),
		debuggee: debuggee,
		logger:   o.logger.With("realm", "debugger"),
		roots:    o.roots,
	}

	steps := []struct {
		stage SetupStage
		fn    func() error
	}{
		{StageWrap, r.wrapDebuggee},
		{StageStdInit, r.initStd},
		{StageCapability, r.installNatives},
		{StageBootstrap, func() error { return r.bootstrap(o.bootstrapName, o.bootstrapSrc) }},
		{StageConstruct, r.construct},
	}
	for _, step := range steps {
		if err := r.run(step.fn); err != nil {
			r.logger.Error("debugger realm setup failed", "stage", step.stage.String(), "error", err)
			if r.dbg != nil {
				r.dbg.Detach()
			}
			return nil, &RealmSetupError{Stage: step.stage, Err: err}
		}
		r.logger.Debug("debugger realm setup", "stage", step.stage.String())
	}
	return r, nil
}

func (r *Realm) run(fn func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if e, ok := x.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", x)
			}
		}
	}()
	return fn()
}

func (r *Realm) wrapDebuggee() error {
	if r.debuggee == nil || r.debuggee.rt == nil {
		return errors.New("no debuggee runtime")
	}
	r.bridge = newBridge(r.debuggee.rt, r.rt)
	p, ok := r.bridge.wrap(r.debuggee.rt.GlobalObject()).(*goja.Object)
	if !ok {
		return errors.New("debuggee global is not an object")
	}
	r.debuggeeProxy = p
	return r.rt.Set("debuggee", p)
}

func (r *Realm) initStd() error {
	reg := require.NewRegistry()
	reg.RegisterNativeModule("console", console.RequireWithPrinter(logPrinter{r.logger}))
	reg.Enable(r.rt)
	console.Enable(r.rt)
	return r.exposeModules()
}

// exposeModules makes require() and imports.<name> of the realm resolve
// through the debuggee's registry. Module instances stay per runtime. The
// registry shares compiled modules between runtimes, so instrumented module
// code gets a hook here that does nothing.
func (r *Realm) exposeModules() error {
	if err := defineHook(r.rt, func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}); err != nil {
		return err
	}
	mod := r.debuggee.registry.Enable(r.rt)
	return r.rt.Set("imports", r.rt.NewDynamicObject(&importsObject{rt: r.rt, mod: mod}))
}

func (r *Realm) installNatives() error {
	if err := r.installCapability(); err != nil {
		return err
	}
	r.helpers = NewHelpers(r.rt, r.logger)
	return r.helpers.FunctionSet().Install(r.rt)
}

func (r *Realm) bootstrap(name, src string) error {
	if _, err := r.rt.RunScript(name, src); err != nil {
		return err
	}
	if err := checkProtocol(r.rt.Get("DebuggerProtocolVersion")); err != nil {
		return err
	}
	ctor, ok := goja.AssertConstructor(r.rt.Get("DebuggerMultiplexer"))
	if !ok {
		return fmt.Errorf("%s does not define a DebuggerMultiplexer constructor", name)
	}
	r.muxCtor = ctor
	return nil
}

func (r *Realm) construct() error {
	mux, err := r.muxCtor(nil)
	if err != nil {
		return err
	}
	r.mux = r.roots.Pin("DebuggerMultiplexer", mux)
	return nil
}

// Runtime returns the realm's runtime. It must only be used on the
// goroutine that drives the debuggee.
func (r *Realm) Runtime() *goja.Runtime {
	return r.rt
}

func (r *Realm) Debuggee() *Debuggee {
	return r.debuggee
}

func (r *Realm) Debugger() *Debugger {
	return r.dbg
}

func (r *Realm) Helpers() *Helpers {
	return r.helpers
}

// Multiplexer returns the pinned DebuggerMultiplexer, or nil after Close.
func (r *Realm) Multiplexer() *goja.Object {
	if r.mux == nil {
		return nil
	}
	return r.mux.Object()
}

// Eval runs src in the realm.
func (r *Realm) Eval(src string) (goja.Value, error) {
	return r.rt.RunString(src)
}

// Close unpins the multiplexer and detaches from the debuggee. It may be
// called more than once.
func (r *Realm) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.mux != nil && r.mux.Unpin() {
		r.logger.Debug("multiplexer unpinned", "ref", r.mux.Ref())
	}
	r.dbg.Detach()
	r.bridge.clear()
}

type importsObject struct {
	rt  *goja.Runtime
	mod *require.RequireModule
}

func (o *importsObject) Get(key string) goja.Value {
	v, err := o.mod.Require(key)
	if err != nil {
		ThrowError(o.rt, err)
	}
	return v
}

func (o *importsObject) Set(string, goja.Value) bool {
	return false
}

func (o *importsObject) Has(key string) bool {
	_, err := o.mod.Require(key)
	return err == nil
}

func (o *importsObject) Delete(string) bool {
	return false
}

func (o *importsObject) Keys() []string {
	return nil
}
