package interp

import (
	"fmt"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

// evalStmt evaluates stmt sequentially against en/h with no control-flow
// discontinuity (§4.F, §9): every statement in a reachable block always
// executes, both arms of an `if` run into the same heap, and loop bodies
// run exactly once regardless of their condition's value. `return`,
// `break`, `continue`, and `throw` evaluate their sub-expression, if any,
// for its side effects and then fall through — none of them exits early.
func (ip *Interpreter) evalStmt(en *env.Env, h *value.Heap, stmt ast.Statement) (*value.Heap, error) {
	switch n := stmt.(type) {
	case *ast.Block:
		for _, s := range n.Statements {
			var err error
			h, err = ip.evalStmt(en, h, s)
			if err != nil && ip.Opts.Strict {
				return h, err
			}
		}
		return h, nil

	case *ast.If:
		return ip.evalIf(en, h, n)

	case *ast.While:
		var err error
		h, _, err = ip.expr(en, h, n.Condition)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		h, err = ip.evalStmt(en, h, n.Body)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		return h, nil

	case *ast.DoWhile:
		var err error
		h, err = ip.evalStmt(en, h, n.Body)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		h, _, err = ip.expr(en, h, n.Condition)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		return h, nil

	case *ast.For:
		var err error
		if n.Init != nil {
			h, err = ip.evalStmt(en, h, n.Init)
			if err != nil && ip.Opts.Strict {
				return h, err
			}
		}
		if n.Condition != nil {
			h, _, err = ip.expr(en, h, n.Condition)
			if err != nil && ip.Opts.Strict {
				return h, err
			}
		}
		h, err = ip.evalStmt(en, h, n.Body)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		if n.Update != nil {
			h, err = ip.evalStmt(en, h, n.Update)
			if err != nil && ip.Opts.Strict {
				return h, err
			}
		}
		return h, nil

	case *ast.Break:
		return h, nil

	case *ast.Continue:
		return h, nil

	case *ast.Return:
		_, ptr := en.Get(h, env.MagicReturn)
		var val value.Value = value.Null
		if n.Argument != nil {
			var err error
			h, val, err = ip.expr(en, h, n.Argument)
			if err != nil {
				if ip.Opts.Strict {
					return h, err
				}
				val = value.Any
			}
		}
		h, _ = ip.assignVar(h, ptr, val)
		return h, nil

	case *ast.Throw:
		var err error
		h, _, err = ip.expr(en, h, n.Argument)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
		return h, nil

	case *ast.Try:
		return ip.evalTry(en, h, n)

	case *ast.Global:
		for _, name := range n.Names {
			en.BindGlobal(h, name)
		}
		return h, nil

	case *ast.Static:
		return ip.evalStatic(en, h, n)

	case *ast.FunctionDef, *ast.ClassDef, *ast.ConstantDef:
		if ip.Opts.Strict {
			return h, Impossible{Detail: fmt.Sprintf("nested declaration of type %T", stmt)}
		}
		return h, nil

	default:
		if e, ok := stmt.(ast.Expression); ok {
			var err error
			h, _, err = ip.expr(en, h, e)
			return h, err
		}
		return h, Impossible{Detail: fmt.Sprintf("statement of type %T has no evaluation rule", stmt)}
	}
}

// evalIf pre-binds every name either arm assigns to a shared cell before
// evaluating either arm, then runs Then and Else in sequence into the same
// heap (§4.F). Pre-binding means a name written in both arms unifies
// automatically through assignVar's existing-cell path, instead of each
// arm silently shadowing the other with its own fresh cell.
func (ip *Interpreter) evalIf(en *env.Env, h *value.Heap, n *ast.If) (*value.Heap, error) {
	names := map[string]bool{}
	collectAssignedNames(n.Then, names)
	if n.Else != nil {
		collectAssignedNames(n.Else, names)
	}
	for name := range names {
		en.Get(h, name)
	}

	var err error
	h, _, err = ip.expr(en, h, n.Condition)
	if err != nil && ip.Opts.Strict {
		return h, err
	}

	h, err = ip.evalStmt(en, h, n.Then)
	if err != nil && ip.Opts.Strict {
		return h, err
	}
	if n.Else != nil {
		h, err = ip.evalStmt(en, h, n.Else)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
	}
	return h, nil
}

func (ip *Interpreter) evalTry(en *env.Env, h *value.Heap, n *ast.Try) (*value.Heap, error) {
	var err error
	h, err = ip.evalStmt(en, h, n.Body)
	if err != nil && ip.Opts.Strict {
		return h, err
	}
	for _, c := range n.Catches {
		if c.Binding != "" {
			en.Get(h, c.Binding)
		}
		h, err = ip.evalStmt(en, h, c.Body)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
	}
	if n.Finally != nil {
		h, err = ip.evalStmt(en, h, n.Finally)
		if err != nil && ip.Opts.Strict {
			return h, err
		}
	}
	return h, nil
}

// evalStatic implements a per-function static variable (§3.3, §9): its cell
// lives in globals under "<fun>**<name>" so it persists across every call
// to the same function for the life of the run, and is seeded from Initial
// only the first time it's ever reached.
func (ip *Interpreter) evalStatic(en *env.Env, h *value.Heap, n *ast.Static) (*value.Heap, error) {
	key := env.StaticKey(en.CFun, n.Name)
	fresh, ptr := en.GetGlobal(h, key)
	if fresh {
		var v value.Value = value.Null
		if n.Initial != nil {
			var err error
			h, v, err = ip.expr(en, h, n.Initial)
			if err != nil {
				if ip.Opts.Strict {
					return h, err
				}
				v = value.Any
			}
		}
		h, _ = ip.assignVar(h, ptr, v)
	}
	en.Vars[n.Name] = ptr.Addr
	return h, nil
}

// collectAssignedNames walks stmt (and nested blocks/branches/loops, but not
// nested function/class declarations) gathering every variable name that
// some reachable assignment, list-destructure, global, or catch binding
// introduces, for evalIf's pre-binding pass.
func collectAssignedNames(stmt ast.Statement, out map[string]bool) {
	switch s := stmt.(type) {
	case *ast.Block:
		for _, st := range s.Statements {
			collectAssignedNames(st, out)
		}
	case *ast.If:
		collectAssignedNames(s.Then, out)
		if s.Else != nil {
			collectAssignedNames(s.Else, out)
		}
	case *ast.While:
		collectAssignedNames(s.Body, out)
	case *ast.DoWhile:
		collectAssignedNames(s.Body, out)
	case *ast.For:
		if s.Init != nil {
			collectAssignedNames(s.Init, out)
		}
		collectAssignedNames(s.Body, out)
		if s.Update != nil {
			collectAssignedNames(s.Update, out)
		}
	case *ast.Try:
		collectAssignedNames(s.Body, out)
		for _, c := range s.Catches {
			if c.Binding != "" {
				out[c.Binding] = true
			}
			collectAssignedNames(c.Body, out)
		}
		if s.Finally != nil {
			collectAssignedNames(s.Finally, out)
		}
	case *ast.Global:
		for _, name := range s.Names {
			out[name] = true
		}
	case *ast.Static:
		out[s.Name] = true
	case *ast.AssignmentExpression:
		collectAssignTargetNames(s.Target, out)
	case *ast.ListAssignmentExpression:
		for _, t := range s.Targets {
			if t != nil {
				collectAssignTargetNames(t, out)
			}
		}
	}
}

func collectAssignTargetNames(e ast.Expression, out map[string]bool) {
	switch t := e.(type) {
	case *ast.Identifier:
		if env.IsVariable(t.Name) {
			out[t.Name] = true
		}
	case *ast.IndexExpression:
		collectAssignTargetNames(t.Collection, out)
	}
}
