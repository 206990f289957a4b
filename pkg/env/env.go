// Package env implements the variable environment (spec §3.3, §4.D): the
// name→address namespaces for locals, globals, and per-function statics,
// plus the rest of the per-run state every evaluator borrows (the call
// chain, recursion-depth counters, the taint-free return cache, and the
// file being analyzed).
package env

import (
	"strings"

	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/codedb"
	"github.com/corewall/hackscan/pkg/value"
)

// Sigil is the source language's variable marker (e.g. the leading `$` in
// `$_GET`, `$this`). Only identifiers shaped like a variable — or one of
// the reserved magic names — are resolved through vars/globals; everything
// else names a constant, function, or class and is resolved via DB
// (§4.D).
const Sigil = "$"

// Reserved magic scratch/identity names the analyzer uses internally,
// living inside the `vars` namespace alongside ordinary source variables
// (§4.D).
const (
	MagicReturn = "*return*"
	MagicArray  = "*array*"
	MagicMyObj  = "*myobj*"
	MagicBuild  = "*BUILD*"
	MagicSelf   = "self"
	MagicParent = "parent"
	MagicThis   = "$this"
)

var reservedNames = map[string]struct{}{
	MagicReturn: {},
	MagicArray:  {},
	MagicMyObj:  {},
	MagicBuild:  {},
	MagicSelf:   {},
	MagicParent: {},
	MagicThis:   {},
}

// IsVariable reports whether name is resolved through vars/globals rather
// than through the code database (§4.D).
func IsVariable(name string) bool {
	if _, ok := reservedNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, Sigil)
}

// StaticKey builds the globals-namespace key for a per-function static
// variable, disambiguated by a "**" sentinel (§3.3, §9).
func StaticKey(fun, name string) string {
	return fun + "**" + name
}

// ClassKey builds the globals-namespace key holding a class's flattened
// Object value, so that "the class-global binding is set" (§4.H) is a literal
// globals-map entry rather than a side table.
func ClassKey(class string) string {
	return "class**" + class
}

// Namespace is a name→address map, shared by locals and globals/statics.
type Namespace map[string]value.Addr

// Clone returns an independent copy, used by the scoped-acquisition
// discipline (§3.3 Ownership, §5) to snapshot `vars` on function entry.
func (n Namespace) Clone() Namespace {
	out := make(Namespace, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// Env bundles every piece of per-run state an evaluator borrows (§3.3). The
// top-level driver owns it; every mutation that isn't meant to be visible
// after the current call/branch returns must be undone via the restore
// function returned by EnterCall, PushPath, BindNames or EnterFrame below.
type Env struct {
	DB      codedb.DB
	Vars    Namespace
	Globals Namespace
	CFun    string
	Path    []callgraph.Node
	Stack   map[string]int
	Safe    map[string]value.Value
	File    string
}

// New returns a toplevel Env: Vars aliases Globals, per §3.3 ("The toplevel
// evaluation aliases vars to globals").
func New(db codedb.DB, file string) *Env {
	globals := make(Namespace)
	return &Env{
		DB:      db,
		Vars:    globals,
		Globals: globals,
		Stack:   make(map[string]int),
		Safe:    make(map[string]value.Value),
		File:    file,
		Path:    []callgraph.Node{callgraph.FakeRoot()},
	}
}

// Get resolves a variable cell (spec §4.B "Var.get"): if name is unbound in
// Vars, a fresh Null cell is allocated and bound, and fresh=true is
// returned; otherwise the existing pointer is returned with fresh=false.
func (e *Env) Get(h *value.Heap, name string) (fresh bool, ptr value.PtrValue) {
	if addr, ok := e.Vars[name]; ok {
		return false, value.NewPtr(addr)
	}
	addr := h.NewCell()
	e.Vars[name] = addr
	return true, value.NewPtr(addr)
}

// GetGlobal is Get's analogue for the globals/statics namespace, used when
// resolving `global $x` bindings and per-function statics (§3.3, §9).
func (e *Env) GetGlobal(h *value.Heap, name string) (fresh bool, ptr value.PtrValue) {
	if addr, ok := e.Globals[name]; ok {
		return false, value.NewPtr(addr)
	}
	addr := h.NewCell()
	e.Globals[name] = addr
	return true, value.NewPtr(addr)
}

// BindGlobal aliases name in Vars to the same address as the like-named
// entry in Globals (creating it if necessary), implementing `global $x;`.
func (e *Env) BindGlobal(h *value.Heap, name string) {
	_, ptr := e.GetGlobal(h, name)
	e.Vars[name] = ptr.Addr
}

//-----------------------------------------------------------------------------
// Scoped-acquisition discipline (§3.3 Ownership, §5): every function that
// mutates Vars/Globals/Path/CFun/File/Safe on entry must restore the prior
// value on every exit path, including errors. These helpers make that a
// single defer at the call site instead of hand-written restores scattered
// through the call engine and class builder.
//-----------------------------------------------------------------------------

// EnterCall snapshots Vars and CFun for a call-engine frame (§4.G step 4)
// and returns a restore func to defer.
func (e *Env) EnterCall(newVars Namespace, cfun string) (restore func()) {
	savedVars, savedCFun := e.Vars, e.CFun
	e.Vars = newVars
	e.CFun = cfun
	return func() {
		e.Vars = savedVars
		e.CFun = savedCFun
	}
}

// PushPath pushes a call-graph node onto the call chain (§3.3) and returns
// a restore func to defer.
func (e *Env) PushPath(n callgraph.Node) (restore func()) {
	e.Path = append(e.Path, n)
	return func() {
		e.Path = e.Path[:len(e.Path)-1]
	}
}

// BindNames temporarily overlays the given globals-namespace bindings
// (used by §4.H to bind `self`/`parent` around a method body) and returns a
// restore func to defer.
func (e *Env) BindNames(overrides map[string]value.Addr) (restore func()) {
	saved := make(map[string]value.Addr, len(overrides))
	existed := make(map[string]bool, len(overrides))
	for name, addr := range overrides {
		if old, ok := e.Globals[name]; ok {
			saved[name] = old
			existed[name] = true
		}
		e.Globals[name] = addr
	}
	return func() {
		for name := range overrides {
			if existed[name] {
				e.Globals[name] = saved[name]
			} else {
				delete(e.Globals, name)
			}
		}
	}
}

// Depth returns the current recursion depth recorded for fun, i.e. how many
// frames of fun are already on the stack.
func (e *Env) Depth(fun string) int { return e.Stack[fun] }

// EnterFrame increments the recursion-depth counter for fun and returns a
// restore func to defer.
func (e *Env) EnterFrame(fun string) (restore func()) {
	e.Stack[fun]++
	return func() { e.Stack[fun]-- }
}
