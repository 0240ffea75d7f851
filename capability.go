package gjsdb

import (
	"github.com/dop251/goja"
)

// installCapability defines the Debugger constructor in the realm. The
// constructor accepts only the realm's debuggee global and succeeds once.
func (r *Realm) installCapability() error {
	dbg, err := NewDebugger(r.debuggee, r.logger)
	if err != nil {
		return err
	}
	r.dbg = dbg

	rt := r.rt
	constructed := false
	ctor := func(call goja.ConstructorCall) *goja.Object {
		if constructed {
			panic(rt.NewTypeError("Debugger: only one instance may exist per realm"))
		}
		if arg, ok := call.Argument(0).(*goja.Object); !ok || arg != r.debuggeeProxy {
			panic(rt.NewTypeError("Debugger: argument must be the debuggee global object"))
		}
		constructed = true
		r.bindCapability(call.This)
		return nil
	}
	return rt.Set("Debugger", ctor)
}

func (r *Realm) bindCapability(obj *goja.Object) {
	rt, dbg := r.rt, r.dbg

	dbg.SetHandler(func(info PauseInfo) {
		fn, ok := goja.AssertFunction(obj.Get("onPause"))
		if !ok {
			r.logger.Debug("pause without onPause handler", "what", info.Kind)
			return
		}
		if _, err := fn(obj, r.pauseInfoObject(info)); err != nil {
			r.logger.Error("onPause handler failed", "error", err)
		}
	})

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"setBreakpoint": func(call goja.FunctionCall) goja.Value {
			cond := ""
			if c := call.Argument(2); !goja.IsUndefined(c) {
				cond = c.String()
			}
			id, err := dbg.SetBreakpoint(call.Argument(0).String(), int(call.Argument(1).ToInteger()), cond)
			if err != nil {
				ThrowError(rt, err)
			}
			return rt.ToValue(id)
		},
		"setFunctionBreakpoint": func(call goja.FunctionCall) goja.Value {
			cond := ""
			if c := call.Argument(1); !goja.IsUndefined(c) {
				cond = c.String()
			}
			id, err := dbg.SetFunctionBreakpoint(call.Argument(0).String(), cond)
			if err != nil {
				ThrowError(rt, err)
			}
			return rt.ToValue(id)
		},
		"clearBreakpoint": func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(dbg.ClearBreakpoint(int(call.Argument(0).ToInteger())))
		},
		"breakpoints": func(goja.FunctionCall) goja.Value {
			bps := dbg.Breakpoints()
			list := make([]any, len(bps))
			for i, bp := range bps {
				o := rt.NewObject()
				_ = o.Set("id", bp.ID)
				_ = o.Set("url", bp.URL)
				_ = o.Set("line", bp.Line)
				_ = o.Set("functionName", bp.FunctionName)
				_ = o.Set("condition", bp.Condition)
				_ = o.Set("hits", bp.Hits)
				_ = o.Set("description", bp.String())
				list[i] = o
			}
			return rt.NewArray(list...)
		},
		"resume":   r.resumeWith(ResumeContinue),
		"stepIn":   r.resumeWith(ResumeStepIn),
		"stepOver": r.resumeWith(ResumeStepOver),
		"stepOut":  r.resumeWith(ResumeStepOut),
		"resumeMode": func(goja.FunctionCall) goja.Value {
			return rt.ToValue(dbg.ResumeMode().String())
		},
		"pause": func(goja.FunctionCall) goja.Value {
			dbg.Pause()
			return goja.Undefined()
		},
		"terminate": func(goja.FunctionCall) goja.Value {
			dbg.Terminate()
			return goja.Undefined()
		},
		"frames": func(goja.FunctionCall) goja.Value {
			frames := dbg.Frames()
			list := make([]any, len(frames))
			for i, f := range frames {
				o := rt.NewObject()
				_ = o.Set("functionName", f.FunctionName)
				_ = o.Set("url", f.URL)
				_ = o.Set("line", f.Line)
				_ = o.Set("column", f.Column)
				list[i] = o
			}
			return rt.NewArray(list...)
		},
		"evaluate": func(call goja.FunctionCall) goja.Value {
			v, err := dbg.Evaluate(call.Argument(0).String())
			if err != nil {
				r.bridge.throw(err)
			}
			return r.bridge.wrap(v)
		},
		"scripts": func(goja.FunctionCall) goja.Value {
			scripts := r.debuggee.Scripts()
			urls := make([]any, len(scripts))
			for i, s := range scripts {
				urls[i] = s.URL
			}
			return rt.NewArray(urls...)
		},
		"source": func(call goja.FunctionCall) goja.Value {
			s := r.debuggee.Script(call.Argument(0).String())
			if s == nil {
				return goja.Undefined()
			}
			return rt.ToValue(s.Source)
		},
	}
	for name, fn := range methods {
		_ = obj.Set(name, fn)
	}
}

func (r *Realm) resumeWith(mode ResumeMode) func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value {
		r.dbg.Resume(mode)
		return goja.Undefined()
	}
}

func (r *Realm) pauseInfoObject(info PauseInfo) *goja.Object {
	o := r.rt.NewObject()
	_ = o.Set("what", info.Kind.String())
	_ = o.Set("url", info.URL)
	_ = o.Set("line", info.Line)
	_ = o.Set("column", info.Column)
	_ = o.Set("functionName", info.FunctionName)
	if info.Breakpoint != 0 {
		_ = o.Set("breakpoint", info.Breakpoint)
	}
	if info.Message != "" {
		_ = o.Set("message", info.Message)
	}
	if info.GeneratedURL != "" {
		_ = o.Set("generatedUrl", info.GeneratedURL)
		_ = o.Set("generatedLine", info.GeneratedLine)
	}
	return o
}
