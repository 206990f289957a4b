package interp

import (
	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

// builtinClosure is a Go-native closure body, used for the synthetic
// *BUILD* constructor (§4.H) rather than a user-defined ast.Block.
type builtinClosure struct {
	id   string
	name string
	fn   func(ip *Interpreter, en *env.Env, h *value.Heap, argExprs []ast.Expression) (*value.Heap, value.Value, error)
}

func (b *builtinClosure) ClosureName() string { return b.name }

// forceClass implements lazy_class (§4.H): the first reference to a class
// flattens it (recursively forcing its parent first) into a runtime Object
// holding its constants, statics, and methods, and binds it under
// env.ClassKey so later references are a no-op cache hit.
func (ip *Interpreter) forceClass(en *env.Env, h *value.Heap, name string) (*value.Heap, *value.ObjectValue, error) {
	if obj, ok := ip.lookupClassGlobal(en, h, name); ok {
		return h, obj, nil
	}

	cd, ok := en.DB.Class(name)
	if !ok {
		if ip.Opts.Strict {
			return h, nil, UnknownClass{Name: name}
		}
		empty := value.NewObject(name)
		h = ip.bindClassGlobal(en, h, name, empty)
		return h, empty, nil
	}

	var parentObj *value.ObjectValue
	if cd.Parent != "" {
		var err error
		h, parentObj, err = ip.forceClass(en, h, cd.Parent)
		if err != nil && ip.Opts.Strict {
			return h, nil, err
		}
	}

	out := value.NewObject(name)
	if parentObj != nil {
		for k, v := range parentObj.Members {
			out.Members[k] = v
		}
	}

	for _, c := range cd.Constants {
		var v value.Value
		var err error
		h, v, err = ip.expr(en, h, c.Value)
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			v = value.Any
		}
		out.Members[c.Name] = v
	}

	for _, p := range cd.Properties {
		if !p.IsStatic {
			continue
		}
		v := value.Value(value.Null)
		if p.Initial != nil {
			var err error
			h, v, err = ip.expr(en, h, p.Initial)
			if err != nil {
				if ip.Opts.Strict {
					return h, nil, err
				}
				v = value.Any
			}
		}
		out.Members[p.Name] = v
	}

	for _, md := range cd.Methods {
		if md.Name == env.MagicBuild {
			continue
		}
		c := &closure{id: ip.freshClosureID(), name: md.Name, class: name, params: md.Parameters, body: md.Body}
		mv := value.NewMethod(value.Null)
		mv.Closures[c.id] = c
		out.Members[md.Name] = mv
	}

	build := &builtinClosure{id: ip.freshClosureID(), name: env.MagicBuild, fn: ip.makeBuildFn(name)}
	bmv := value.NewMethod(value.Null)
	bmv.Closures[build.id] = build
	out.Members[env.MagicBuild] = bmv

	h = ip.bindClassGlobal(en, h, name, out)
	return h, out, nil
}

func (ip *Interpreter) lookupClassGlobal(en *env.Env, h *value.Heap, name string) (*value.ObjectValue, bool) {
	addr, ok := en.Globals[env.ClassKey(name)]
	if !ok {
		return nil, false
	}
	p, ok := h.Get(addr).(value.PtrValue)
	if !ok {
		return nil, false
	}
	obj, ok := h.Get(p.Addr).(*value.ObjectValue)
	return obj, ok
}

func (ip *Interpreter) bindClassGlobal(en *env.Env, h *value.Heap, name string, obj *value.ObjectValue) *value.Heap {
	inner := h.NewCellWith(obj)
	outer := h.NewCell()
	h.Set(outer, value.NewPtr(inner))
	en.Globals[env.ClassKey(name)] = outer
	return h
}

// makeBuildFn returns the *BUILD* constructor body for className: it is not
// called through the regular call-body machinery, and evalNew does not use
// it (evalNew calls forceClass and instantiate itself); it runs only when
// *BUILD* is dispatched as a Method value, and it is recorded as one so
// method-unification bookkeeping sees it like any other override.
func (ip *Interpreter) makeBuildFn(className string) func(*Interpreter, *env.Env, *value.Heap, []ast.Expression) (*value.Heap, value.Value, error) {
	return func(ip *Interpreter, en *env.Env, h *value.Heap, _ []ast.Expression) (*value.Heap, value.Value, error) {
		h, classObj, err := ip.forceClass(en, h, className)
		if err != nil {
			return h, nil, err
		}
		h, addr, err := ip.instantiate(en, h, classObj, className, nil)
		if err != nil {
			return h, nil, err
		}
		return h, value.NewPtr(addr), nil
	}
}

// instantiate builds a fresh instance of className (§4.H steps b-d): it
// overlays the flattened class Object's statics/constants/methods with the
// chain's non-static instance properties (root ancestor first, so subclass
// initializers override), then rebinds every inherited method's receiver to
// the new instance.
func (ip *Interpreter) instantiate(en *env.Env, h *value.Heap, classObj *value.ObjectValue, className string, _ []ast.Expression) (*value.Heap, value.Addr, error) {
	out := value.NewObject(className)
	for k, v := range classObj.Members {
		out.Members[k] = v
	}

	var chain []*ast.ClassDef
	cur := className
	for cur != "" {
		cd, ok := en.DB.Class(cur)
		if !ok {
			break
		}
		chain = append([]*ast.ClassDef{cd}, chain...)
		cur = cd.Parent
	}

	for _, cd := range chain {
		for _, p := range cd.Properties {
			if p.IsStatic {
				continue
			}
			v := value.Value(value.Null)
			if p.Initial != nil {
				var err error
				h, v, err = ip.expr(en, h, p.Initial)
				if err != nil {
					if ip.Opts.Strict {
						return h, 0, err
					}
					v = value.Any
				}
			}
			out.Members[p.Name] = v
		}
	}

	instAddr := h.NewCellWith(out)
	receiver := value.NewPtr(instAddr)
	for k, v := range out.Members {
		if mv, ok := v.(value.MethodValue); ok {
			out.Members[k] = value.MethodValue{Receiver: receiver, Closures: mv.Closures}
		}
	}
	return h, instAddr, nil
}
