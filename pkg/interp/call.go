package interp

import (
	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/taint"
	"github.com/corewall/hackscan/pkg/value"
)

// closure is a user-defined function or method body, the concrete type
// behind value.Closure for everything except the synthetic *BUILD*
// constructor (builtinClosure, in class.go).
type closure struct {
	id     string
	name   string
	class  string
	params []*ast.Parameter
	body   *ast.Block
}

func (c *closure) ClosureName() string { return c.name }

// callFun implements the clean-call tracking, recursion/depth bound, and
// frame management around a free function's body (§4.G).
func (ip *Interpreter) callFun(en *env.Env, h *value.Heap, fd *ast.FunctionDef, argExprs []ast.Expression) (*value.Heap, value.Value, error) {
	return ip.callBody(en, h, fd.Name, fd.Parameters, fd.Body, argExprs, callgraph.Function(fd.Name))
}

// paramBinding is a prepared, not-yet-applied parameter slot: computed while
// still in the caller's environment (so by-reference targets resolve against
// the caller's variables), applied once the callee's frame is live.
type paramBinding struct {
	name          string
	addr          value.Addr
	pendingDefault ast.Expression
}

// callBody runs stmts against a fresh frame for a function or method body
// named stackKey, tracked on the call graph as pathNode (§4.G steps 1-6).
func (ip *Interpreter) callBody(en *env.Env, h *value.Heap, stackKey string, params []*ast.Parameter, body *ast.Block, argExprs []ast.Expression, pathNode callgraph.Node) (*value.Heap, value.Value, error) {
	argVals := make([]value.Value, len(argExprs))
	clean := true
	for i, ae := range argExprs {
		var err error
		h, argVals[i], err = ip.expr(en, h, ae)
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			argVals[i] = value.Any
		}
		if taint.HasTaint(argVals[i]) {
			clean = false
		}
	}

	depth := en.Depth(stackKey)
	if depth >= 2 || (len(en.Path) >= ip.Opts.MaxDepth && clean) {
		return h, value.Any, nil
	}

	bindings, err := ip.prepareParams(en, h, params, argExprs, argVals)
	if err != nil && ip.Opts.Strict {
		return h, nil, err
	}

	restoreFrame := en.EnterFrame(stackKey)
	defer restoreFrame()

	newVars := make(env.Namespace)
	restoreCall := en.EnterCall(newVars, stackKey)
	defer restoreCall()

	restorePath := en.PushPath(pathNode)
	defer restorePath()

	for _, b := range bindings {
		if b.pendingDefault != nil {
			var dv value.Value
			var derr error
			h, dv, derr = ip.expr(en, h, b.pendingDefault)
			if derr != nil {
				if ip.Opts.Strict {
					return h, nil, derr
				}
				dv = value.Any
			}
			inner := h.NewCellWith(dv)
			outer := h.NewCell()
			h.Set(outer, value.NewPtr(inner))
			newVars[b.name] = outer
			continue
		}
		newVars[b.name] = b.addr
	}

	_, retPtr := en.Get(h, env.MagicReturn)

	for _, stmt := range body.Statements {
		var serr error
		h, serr = ip.evalStmt(en, h, stmt)
		if serr != nil && ip.Opts.Strict {
			return h, nil, serr
		}
	}

	result := ip.readVar(h, retPtr)
	if !taint.HasTaint(result) {
		en.Safe[stackKey] = result
	}
	return h, result, nil
}

// prepareParams resolves each formal parameter's actual argument into a
// doubly-indirected cell while still in the caller's environment: by-value
// parameters get a fresh cell seeded with the evaluated argument (or Null
// when the actual is missing and no default exists); by-reference
// parameters share the caller's value cell via ensureCell (§4.G, §3.1
// invariant 3). Defaults are deferred (pendingDefault) since they must
// evaluate in the callee's own environment, after other parameters are
// already bound.
func (ip *Interpreter) prepareParams(en *env.Env, h *value.Heap, params []*ast.Parameter, argExprs []ast.Expression, argVals []value.Value) ([]paramBinding, error) {
	var out []paramBinding
	for i, p := range params {
		if p.IsVariadic {
			rest := make([]value.Value, 0)
			for j := i; j < len(argVals); j++ {
				rest = append(rest, argVals[j])
			}
			inner := h.NewCellWith(value.ArrayValue{Elements: rest})
			outer := h.NewCell()
			h.Set(outer, value.NewPtr(inner))
			out = append(out, paramBinding{name: p.Name, addr: outer})
			continue
		}
		if p.ByRef && i < len(argExprs) {
			_, _, callerPtr, err := ip.lvalue(en, h, argExprs[i])
			if err != nil {
				return out, err
			}
			shared := ip.ensureCell(h, callerPtr)
			outer := h.NewCell()
			h.Set(outer, value.NewPtr(shared))
			out = append(out, paramBinding{name: p.Name, addr: outer})
			continue
		}
		if i < len(argExprs) {
			inner := h.NewCellWith(argVals[i])
			outer := h.NewCell()
			h.Set(outer, value.NewPtr(inner))
			out = append(out, paramBinding{name: p.Name, addr: outer})
			continue
		}
		if p.Default != nil {
			out = append(out, paramBinding{name: p.Name, pendingDefault: p.Default})
			continue
		}
		inner := h.NewCellWith(value.Null)
		outer := h.NewCell()
		h.Set(outer, value.NewPtr(inner))
		out = append(out, paramBinding{name: p.Name, addr: outer})
	}
	return out, nil
}

// callMethodByName dispatches by name on an already-resolved instance
// (§4.H): a miss is an UnknownMethod in strict mode, else a conservative
// unknown-call summary.
func (ip *Interpreter) callMethodByName(en *env.Env, h *value.Heap, inst *value.ObjectValue, className, methodName string, argExprs []ast.Expression) (*value.Heap, value.Value, error) {
	mv, ok := inst.Members[methodName].(value.MethodValue)
	if !ok {
		if ip.Opts.Strict {
			return h, nil, UnknownMethod{Name: methodName, Class: className, Candidates: memberNames(inst)}
		}
		return h, ip.Taint.UnknownCallSummary(methodName), nil
	}
	return ip.callMethodValue(en, h, mv, argExprs, className, methodName)
}

// callMethodValue invokes every override bundled in mv (§3.1 invariant 4),
// binding self/parent for the duration (§4.H), and unifies their results.
// When methodName, or the declared name of a dispatched override, is the
// reserved sink name, the unified result is checked for taint (§4.I).
func (ip *Interpreter) callMethodValue(en *env.Env, h *value.Heap, mv value.MethodValue, argExprs []ast.Expression, className, methodName string) (*value.Heap, value.Value, error) {
	overrides := map[string]value.Addr{}
	recv := mv.Receiver
	if p, ok := recv.(value.PtrValue); ok {
		recv = h.Get(p.Addr)
	}
	selfInner := h.NewCellWith(recv)
	selfAddr := h.NewCell()
	h.Set(selfAddr, value.NewPtr(selfInner))
	overrides[env.MagicSelf] = selfAddr
	if className != "" {
		if cd, ok := en.DB.Class(className); ok && cd.Parent != "" {
			var parentObj *value.ObjectValue
			var perr error
			h, parentObj, perr = ip.forceClass(en, h, cd.Parent)
			if perr == nil && parentObj != nil {
				parentAddr := h.NewCellWith(value.NewPtr(h.NewCellWith(parentObj)))
				overrides[env.MagicParent] = parentAddr
			}
		}
	}
	restore := en.BindNames(overrides)
	defer restore()

	ids := sortedClosureIDs(mv.Closures)
	sink := methodName == taint.ReservedSink
	var results []value.Value
	for _, id := range ids {
		c := mv.Closures[id]
		var rv value.Value
		var err error
		switch cc := c.(type) {
		case *closure:
			if cc.name == taint.ReservedSink {
				sink = true
				if className == "" {
					className = cc.class
				}
			}
			stackKey := cc.name
			if cc.class != "" {
				stackKey = cc.class + "::" + cc.name
			}
			node := callgraph.Function(cc.name)
			if cc.class != "" {
				node = callgraph.Method(cc.class, cc.name)
			}
			h, rv, err = ip.callBody(en, h, stackKey, cc.params, cc.body, argExprs, node)
		case *builtinClosure:
			h, rv, err = cc.fn(ip, en, h, argExprs)
		default:
			rv = value.Any
		}
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			rv = value.Any
		}
		results = append(results, rv)
	}

	var merged value.Value = value.Null
	if len(results) > 0 {
		merged = results[0]
		for _, r := range results[1:] {
			h, merged = ip.unify(h, merged, r)
		}
	}
	if sink {
		ip.Taint.CheckDanger(taint.ReservedSink, taint.SinkInfo(className, taint.ReservedSink), merged)
	}
	return h, merged, nil
}
