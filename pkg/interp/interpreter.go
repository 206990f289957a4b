// Package interp implements the interpretation engine itself: the
// expression evaluator, statement evaluator, call engine, and class builder
// (spec §4.E–§4.H), threaded through the value/heap/environment packages.
package interp

import (
	"fmt"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/taint"
	"github.com/corewall/hackscan/pkg/unify"
	"github.com/corewall/hackscan/pkg/value"
)

// Options are the process-wide analysis-mode flags (spec §5, §6.3); they are
// logically owned by the top-level driver, same as the call graph and the
// checkpoint slot.
type Options struct {
	Strict       bool
	ExtractPaths bool
	MaxDepth     int
	TaintMode    bool
}

// DefaultMaxDepth is the call-stack depth cap for clean calls when Options
// doesn't set one explicitly (spec §6.3).
const DefaultMaxDepth = 6

// Checkpoint is the debug snapshot slot: at most one (heap, vars) pair,
// captured at the last checkpoint() call (spec §6.2).
type Checkpoint struct {
	Heap *value.Heap
	Vars env.Namespace
}

// Interpreter bundles the process-wide state a run of the evaluator shares:
// the accumulating call graph, the taint module, the unifier, and the
// checkpoint slot (spec §5).
type Interpreter struct {
	Opts       Options
	Graph      *callgraph.Graph
	Taint      taint.Module
	Unifier    *unify.Unifier
	Checkpoint *Checkpoint

	scratchSeq int
	closureSeq int
}

// New returns an Interpreter ready to evaluate a module. A nil taintModule
// is replaced with a disabled taint.Default, matching "when disabled, its
// operations are identity/no-op" (spec §4.I).
func New(opts Options, taintModule taint.Module) *Interpreter {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if taintModule == nil {
		taintModule = taint.New(false, nil)
	}
	return &Interpreter{
		Opts:    opts,
		Graph:   callgraph.New(),
		Taint:   taintModule,
		Unifier: unify.New(taintTaintPolicy{taintModule}),
	}
}

// taintTaintPolicy adapts taint.Module to unify.TaintPolicy without making
// pkg/unify depend on pkg/taint.
type taintTaintPolicy struct{ m taint.Module }

func (p taintTaintPolicy) FoldUnify(a, b value.Value) (value.Value, bool) {
	return p.m.FoldUnify(a, b)
}

func (ip *Interpreter) unify(h *value.Heap, a, b value.Value) (*value.Heap, value.Value) {
	return ip.Unifier.Unify(h, a, b)
}

func (ip *Interpreter) freshScratch(base string) string {
	ip.scratchSeq++
	return fmt.Sprintf("%s#%d", base, ip.scratchSeq)
}

func (ip *Interpreter) freshClosureID() string {
	ip.closureSeq++
	return fmt.Sprintf("closure#%d", ip.closureSeq)
}

// RunModule executes a module's toplevel statements (and, when
// Opts.ExtractPaths is set, the fake-root sweep over every hoisted
// function/class) against the Env passed in (spec §4.F, §6.3, GLOSSARY
// "fake root").
func (ip *Interpreter) RunModule(en *env.Env, h *value.Heap, m *ast.Module) (*value.Heap, error) {
	for _, stmt := range m.Body {
		var err error
		h, err = ip.evalStmt(en, h, stmt)
		if err != nil {
			if ip.Opts.Strict {
				return h, err
			}
		}
	}
	if ip.Opts.ExtractPaths {
		return ip.sweepFakeRoot(en, h)
	}
	return h, nil
}

// sweepFakeRoot synthesizes a root-level sweep that calls every top-level
// function and every method of every top-level class, with FakeRoot as the
// caller (spec §4.F, GLOSSARY).
func (ip *Interpreter) sweepFakeRoot(en *env.Env, h *value.Heap) (*value.Heap, error) {
	root := callgraph.FakeRoot()
	restore := en.PushPath(root)
	defer restore()

	for _, fd := range en.DB.Functions() {
		ip.Graph.AddEdge(root, callgraph.Function(fd.Name))
		var err error
		h, _, err = ip.callFun(en, h, fd, nil)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
	}
	for _, cd := range en.DB.Classes() {
		var classObj *value.ObjectValue
		var err error
		h, classObj, err = ip.forceClass(en, h, cd.Name)
		if err != nil {
			if ip.Opts.Strict {
				return h, err
			}
			continue
		}
		for _, md := range cd.Methods {
			if md.Name == env.MagicBuild {
				continue
			}
			ip.Graph.AddEdge(root, callgraph.Method(cd.Name, md.Name))
			var instAddr value.Addr
			h, instAddr, err = ip.instantiate(en, h, classObj, cd.Name, nil)
			if err != nil {
				if ip.Opts.Strict {
					return h, err
				}
				continue
			}
			inst := h.Get(instAddr)
			instObj, ok := inst.(*value.ObjectValue)
			if !ok {
				continue
			}
			h, _, err = ip.callMethodByName(en, h, instObj, cd.Name, md.Name, nil)
			if err != nil && ip.Opts.Strict {
				return h, err
			}
		}
	}
	return h, nil
}
