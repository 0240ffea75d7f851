package gjsdb

import (
	"sync"

	"github.com/dop251/goja"
)

// RootSet keeps script values alive on behalf of native code. A pinned value
// stays referenced until its handle is unpinned, whether or not any script
// can still reach it.
type RootSet struct {
	mu      sync.Mutex
	nextRef int
	refs    map[int]rootEntry
}

type rootEntry struct {
	name  string
	value goja.Value
}

// Roots is the process-wide root set used by realms unless WithRootSet is given.
var Roots = NewRootSet()

// NewRootSet creates an empty RootSet.
func NewRootSet() *RootSet {
	return &RootSet{
		refs: make(map[int]rootEntry),
	}
}

// Pin registers v and returns the handle that owns the registration.
func (rs *RootSet) Pin(name string, v goja.Value) *Pinned {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.nextRef++
	rs.refs[rs.nextRef] = rootEntry{name: name, value: v}
	return &Pinned{rs: rs, ref: rs.nextRef, name: name}
}

// Get retrieves a pinned value by reference.
func (rs *RootSet) Get(ref int) (goja.Value, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	e, ok := rs.refs[ref]
	return e.value, ok
}

// Len returns the number of live pins.
func (rs *RootSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.refs)
}

// Names lists the names of live pins, in no particular order.
func (rs *RootSet) Names() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	names := make([]string, 0, len(rs.refs))
	for _, e := range rs.refs {
		names = append(names, e.name)
	}
	return names
}

func (rs *RootSet) remove(ref int) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.refs[ref]; !ok {
		return false
	}
	delete(rs.refs, ref)
	return true
}

// Pinned is the handle of one registration in a RootSet.
type Pinned struct {
	rs   *RootSet
	ref  int
	name string
}

// Ref returns the reference ID of the pin.
func (p *Pinned) Ref() int {
	return p.ref
}

// Value returns the pinned value, or nil once the handle has been unpinned.
func (p *Pinned) Value() goja.Value {
	v, _ := p.rs.Get(p.ref)
	return v
}

// Object is Value as *goja.Object.
func (p *Pinned) Object() *goja.Object {
	o, _ := p.Value().(*goja.Object)
	return o
}

// Unpin removes the registration. It reports true only for the call that
// actually removed it.
func (p *Pinned) Unpin() bool {
	return p.rs.remove(p.ref)
}
