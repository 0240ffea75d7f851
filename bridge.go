package gjsdb

import (
	"errors"

	"github.com/dop251/goja"
)

// accessors are property operations compiled in the runtime that owns the
// object. Calling them through goja.Callable turns a thrown exception into
// an error instead of unwinding the caller's runtime.
type accessors struct {
	get, set, has, del, keys goja.Callable
}

// hasSource tests presence the way the in operator does, without running
// getters.
const hasSource = "(function (o, k) { return k in o; })"

var hasProgram = goja.MustCompile("<bridge>", hasSource, true)

func newAccessors(rt *goja.Runtime) *accessors {
	fn := func(f func(o *goja.Object, call goja.FunctionCall) goja.Value) goja.Callable {
		c, _ := goja.AssertFunction(rt.ToValue(func(call goja.FunctionCall) goja.Value {
			return f(call.Argument(0).ToObject(rt), call)
		}))
		return c
	}
	hasFn, err := rt.RunProgram(hasProgram)
	if err != nil {
		panic(err)
	}
	has, _ := goja.AssertFunction(hasFn)
	return &accessors{
		get: fn(func(o *goja.Object, call goja.FunctionCall) goja.Value {
			return o.Get(call.Argument(1).String())
		}),
		set: fn(func(o *goja.Object, call goja.FunctionCall) goja.Value {
			if err := o.Set(call.Argument(1).String(), call.Argument(2)); err != nil {
				panic(err)
			}
			return goja.Undefined()
		}),
		has: has,
		del: fn(func(o *goja.Object, call goja.FunctionCall) goja.Value {
			return rt.ToValue(o.Delete(call.Argument(1).String()) == nil)
		}),
		keys: fn(func(o *goja.Object, call goja.FunctionCall) goja.Value {
			return rt.ToValue(o.Keys())
		}),
	}
}

// bridge carries values owned by one runtime (from) into another (to).
// Objects are never handed over; the receiving side gets a proxy whose every
// access runs in the owning runtime.
type bridge struct {
	from, to *goja.Runtime
	acc      *accessors
	back     *bridge

	proxies map[*goja.Object]*goja.Object
	origins map[*goja.Object]*goja.Object
}

func newBridge(from, to *goja.Runtime) *bridge {
	b := &bridge{
		from:    from,
		to:      to,
		acc:     newAccessors(from),
		proxies: make(map[*goja.Object]*goja.Object),
		origins: make(map[*goja.Object]*goja.Object),
	}
	b.back = &bridge{
		from:    to,
		to:      from,
		acc:     newAccessors(to),
		back:    b,
		proxies: make(map[*goja.Object]*goja.Object),
		origins: make(map[*goja.Object]*goja.Object),
	}
	return b
}

// wrap converts v, a value of b.from, into a value usable in b.to.
func (b *bridge) wrap(v goja.Value) goja.Value {
	if v == nil || goja.IsUndefined(v) {
		return goja.Undefined()
	}
	if goja.IsNull(v) {
		return goja.Null()
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		// symbols are per runtime; the receiver gets their description
		if sym, ok := v.(*goja.Symbol); ok {
			return b.to.ToValue("Symbol(" + sym.String() + ")")
		}
		return b.to.ToValue(v.Export())
	}
	if orig, ok := b.back.origins[obj]; ok {
		return orig
	}
	if p, ok := b.proxies[obj]; ok {
		return p
	}
	var p *goja.Object
	if fn, ok := goja.AssertFunction(obj); ok {
		p = b.to.ToValue(func(call goja.FunctionCall) goja.Value {
			args := make([]goja.Value, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = b.back.wrap(a)
			}
			res, err := fn(b.back.wrap(call.This), args...)
			if err != nil {
				b.throw(err)
			}
			return b.wrap(res)
		}).(*goja.Object)
	} else {
		p = b.to.NewDynamicObject(&remoteObject{b: b, target: obj})
	}
	b.proxies[obj] = p
	b.origins[p] = obj
	return p
}

// throw re-raises err, produced in b.from, as an exception of b.to.
func (b *bridge) throw(err error) {
	re := &RemoteError{Name: "Error", Message: err.Error()}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		re.Name, re.Message = describeException(ex)
	}
	e := b.to.NewGoError(re)
	_ = e.Set("name", re.Name)
	_ = e.Set("message", re.Message)
	panic(e)
}

func (b *bridge) clear() {
	clear(b.proxies)
	clear(b.origins)
	clear(b.back.proxies)
	clear(b.back.origins)
}

type remoteObject struct {
	b      *bridge
	target *goja.Object
}

func (r *remoteObject) call(fn goja.Callable, args ...goja.Value) goja.Value {
	res, err := fn(goja.Undefined(), append([]goja.Value{r.target}, args...)...)
	if err != nil {
		r.b.throw(err)
	}
	return res
}

func (r *remoteObject) Get(key string) goja.Value {
	return r.b.wrap(r.call(r.b.acc.get, r.b.from.ToValue(key)))
}

func (r *remoteObject) Set(key string, val goja.Value) bool {
	r.call(r.b.acc.set, r.b.from.ToValue(key), r.b.back.wrap(val))
	return true
}

func (r *remoteObject) Has(key string) bool {
	return r.call(r.b.acc.has, r.b.from.ToValue(key)).ToBoolean()
}

func (r *remoteObject) Delete(key string) bool {
	return r.call(r.b.acc.del, r.b.from.ToValue(key)).ToBoolean()
}

func (r *remoteObject) Keys() []string {
	var keys []string
	if err := r.b.from.ExportTo(r.call(r.b.acc.keys), &keys); err != nil {
		r.b.throw(err)
	}
	return keys
}
