package interp

import (
	"fmt"
	"math/big"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

// slot is an assignable location — a variable cell, an object/class member,
// or an index into a collection — abstracted so AssignmentExpression,
// ListAssignmentExpression, and compound-assignment share one mechanism
// regardless of what shape of expression names the target (§4.E).
type slot struct {
	read  func(h *value.Heap) value.Value
	write func(h *value.Heap, v value.Value) *value.Heap
}

// expr evaluates e against en/h, returning the updated heap and the value
// (§4.E). Side effects (assignment, calls) are threaded through h exactly
// once, left to right, matching source evaluation order.
func (ip *Interpreter) expr(en *env.Env, h *value.Heap, e ast.Expression) (*value.Heap, value.Value, error) {
	switch n := e.(type) {
	case *ast.Identifier:
		return ip.evalIdentifier(en, h, n.Name)
	case *ast.StringLiteral:
		return h, value.StringValue{Val: n.Value}, nil
	case *ast.IntLiteral:
		return h, value.IntValue{Val: n.Value}, nil
	case *ast.FloatLiteral:
		return h, value.FloatValue{Val: n.Value}, nil
	case *ast.BoolLiteral:
		return h, value.BoolValue{Val: n.Value}, nil
	case *ast.NullLiteral:
		return h, value.Null, nil
	case *ast.ArrayLiteral:
		return ip.evalArrayLiteral(en, h, n)
	case *ast.XhpLiteral:
		return ip.evalXhpLiteral(en, h, n)
	case *ast.StringInterpolation:
		return ip.evalStringInterpolation(en, h, n)
	case *ast.UnaryExpression:
		var err error
		var v value.Value
		h, v, err = ip.expr(en, h, n.Operand)
		if err != nil {
			return h, nil, err
		}
		return h, ip.evalUnary(n.Operator, v), nil
	case *ast.BinaryExpression:
		return ip.evalBinary(en, h, n)
	case *ast.ConditionalExpression:
		return ip.evalConditional(en, h, n)
	case *ast.AssignmentExpression:
		return ip.evalAssignment(en, h, n)
	case *ast.ListAssignmentExpression:
		return ip.evalListAssignment(en, h, n)
	case *ast.Call:
		return ip.evalCall(en, h, n)
	case *ast.New:
		return ip.evalNew(en, h, n)
	case *ast.ObjGet, *ast.ClassGet:
		h2, sl, err := ip.resolveTarget(en, h, e)
		if err != nil {
			return h2, nil, err
		}
		return h2, sl.read(h2), nil
	case *ast.IndexExpression:
		h2, coll, err := ip.expr(en, h, n.Collection)
		if err != nil {
			return h2, nil, err
		}
		var idx value.Value
		h2, idx, err = ip.expr(en, h2, n.Index)
		if err != nil {
			return h2, nil, err
		}
		h2, v := ip.indexRead(h2, coll, idx)
		return h2, v, nil
	case *ast.LambdaExpression:
		return ip.evalLambda(en, h, n)
	default:
		return h, nil, Impossible{Detail: fmt.Sprintf("expression of type %T has no evaluation rule", e)}
	}
}

// evalIdentifier resolves a bare name: a variable (via the doubly-indirected
// cell model), a reserved taint source, or a constant (§4.D, §4.E, §4.I).
func (ip *Interpreter) evalIdentifier(en *env.Env, h *value.Heap, name string) (*value.Heap, value.Value, error) {
	if env.IsVariable(name) {
		h2, _, ptr, err := ip.lvalueIdentifier(en, h, name)
		if err != nil {
			return h2, nil, err
		}
		return h2, ip.readVar(h2, ptr), nil
	}
	if cexpr, ok := en.DB.Constant(name); ok {
		return ip.expr(en, h, cexpr)
	}
	if ip.Opts.Strict {
		return h, nil, UnknownConstant{Name: name}
	}
	return h, value.Any, nil
}

// lvalueIdentifier resolves a variable name's cell, materializing a taint
// source value on first reference to a reserved superglobal (§4.I).
func (ip *Interpreter) lvalueIdentifier(en *env.Env, h *value.Heap, name string) (*value.Heap, bool, value.PtrValue, error) {
	fresh, ptr := en.Get(h, name)
	if fresh && ip.Taint.Enabled() {
		if sv, ok := ip.Taint.SourceValue(name); ok {
			h, _ = ip.assignVar(h, ptr, sv)
		}
	}
	return h, fresh, ptr, nil
}

// lvalue is lvalueIdentifier's public-within-package entry for callers that
// already know the target is variable-shaped (by-reference parameter
// binding, §4.G).
func (ip *Interpreter) lvalue(en *env.Env, h *value.Heap, e ast.Expression) (*value.Heap, bool, value.PtrValue, error) {
	id, ok := e.(*ast.Identifier)
	if !ok {
		return h, false, value.PtrValue{}, Impossible{Detail: fmt.Sprintf("by-reference binding requires a variable, got %T", e)}
	}
	return ip.lvalueIdentifier(en, h, id.Name)
}

func (ip *Interpreter) evalArrayLiteral(en *env.Env, h *value.Heap, n *ast.ArrayLiteral) (*value.Heap, value.Value, error) {
	allPositional := true
	for _, k := range n.Keys {
		if k != nil {
			allPositional = false
			break
		}
	}
	if allPositional {
		elems := make([]value.Value, 0, len(n.Elements))
		for _, el := range n.Elements {
			var v value.Value
			var err error
			h, v, err = ip.expr(en, h, el)
			if err != nil {
				if ip.Opts.Strict {
					return h, nil, err
				}
				v = value.Any
			}
			elems = append(elems, v)
		}
		return h, value.ArrayValue{Elements: elems}, nil
	}

	rec := value.NewRecord()
	for i, el := range n.Elements {
		var v value.Value
		var err error
		h, v, err = ip.expr(en, h, el)
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			v = value.Any
		}
		var key string
		if i < len(n.Keys) && n.Keys[i] != nil {
			var kv value.Value
			h, kv, err = ip.expr(en, h, n.Keys[i])
			if err != nil {
				if ip.Opts.Strict {
					return h, nil, err
				}
			}
			if sv, ok := kv.(value.StringValue); ok {
				key = sv.Val
			} else {
				// non-literal key: widen the whole literal to a Map instead.
				return ip.widenArrayLiteralToMap(en, h, n)
			}
		} else {
			key = fmt.Sprintf("%d", i)
		}
		if old, exists := rec.Fields[key]; exists {
			h, rec.Fields[key] = ip.unify(h, old, v)
		} else {
			rec.Fields[key] = v
		}
	}
	return h, rec, nil
}

// widenArrayLiteralToMap handles array literals keyed by a non-literal
// expression: the key shape can't be known statically, so every key/value
// pair folds into one summary Map entry (§3.1, §4.E).
func (ip *Interpreter) widenArrayLiteralToMap(en *env.Env, h *value.Heap, n *ast.ArrayLiteral) (*value.Heap, value.Value, error) {
	var key value.Value = value.Null
	var elem value.Value = value.Null
	for i, el := range n.Elements {
		var v value.Value
		var err error
		h, v, err = ip.expr(en, h, el)
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			v = value.Any
		}
		h, elem = unifyOrReplace(ip, h, elem, v)
		if i < len(n.Keys) && n.Keys[i] != nil {
			var kv value.Value
			h, kv, err = ip.expr(en, h, n.Keys[i])
			if err != nil {
				if ip.Opts.Strict {
					return h, nil, err
				}
				kv = value.Any
			}
			h, key = unifyOrReplace(ip, h, key, kv)
		} else {
			h, key = unifyOrReplace(ip, h, key, value.NewAbstractType(value.TypeInt))
		}
	}
	return h, value.MapValue{Key: key, Elem: elem}, nil
}

func unifyOrReplace(ip *Interpreter, h *value.Heap, acc, v value.Value) (*value.Heap, value.Value) {
	if acc == value.Value(value.Null) {
		return h, v
	}
	return ip.unify(h, acc, v)
}

func (ip *Interpreter) evalXhpLiteral(en *env.Env, h *value.Heap, n *ast.XhpLiteral) (*value.Heap, value.Value, error) {
	for _, attr := range n.Attributes {
		var err error
		h, _, err = ip.expr(en, h, attr)
		if err != nil && ip.Opts.Strict {
			return h, nil, err
		}
	}
	for _, c := range n.Children {
		var err error
		h, _, err = ip.expr(en, h, c)
		if err != nil && ip.Opts.Strict {
			return h, nil, err
		}
	}
	return h, value.NewAbstractType(value.TypeXhp), nil
}

func (ip *Interpreter) evalStringInterpolation(en *env.Env, h *value.Heap, n *ast.StringInterpolation) (*value.Heap, value.Value, error) {
	segs := make([]value.Value, 0, len(n.Segments))
	for _, s := range n.Segments {
		var v value.Value
		var err error
		h, v, err = ip.expr(en, h, s)
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
			v = value.Any
		}
		segs = append(segs, v)
	}
	return h, ip.Taint.SlistFold(segs), nil
}

func (ip *Interpreter) evalUnary(op string, v value.Value) value.Value {
	t := unaryResultType(op)
	if shape, ok := valueShapeType(v); ok {
		if shape == t {
			return value.NewAbstractType(t)
		}
		return value.NewSum(value.Null, value.NewAbstractType(t))
	}
	if at, ok := v.(value.AbstractTypeValue); ok {
		if at.Type == t {
			return at
		}
		return value.NewSum(value.Null, value.NewAbstractType(t))
	}
	return value.NewSum(value.Null, value.NewAbstractType(t))
}

func (ip *Interpreter) evalBinary(en *env.Env, h *value.Heap, n *ast.BinaryExpression) (*value.Heap, value.Value, error) {
	var left, right value.Value
	var err error
	h, left, err = ip.expr(en, h, n.Left)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		left = value.Any
	}
	h, right, err = ip.expr(en, h, n.Right)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		right = value.Any
	}
	if isConcatOp(n.Operator) {
		return h, ip.Taint.ConcatFold(left, right), nil
	}
	if isLogicalOp(n.Operator) {
		return h, value.NewAbstractType(value.TypeBool), nil
	}
	if isIntShaped(left) && isIntShaped(right) {
		return h, value.NewAbstractType(value.TypeInt), nil
	}
	return h, value.NewSum(value.Null, value.NewAbstractType(value.TypeInt)), nil
}

func (ip *Interpreter) evalConditional(en *env.Env, h *value.Heap, n *ast.ConditionalExpression) (*value.Heap, value.Value, error) {
	var err error
	h, _, err = ip.expr(en, h, n.Condition)
	if err != nil && ip.Opts.Strict {
		return h, nil, err
	}
	var thenV, elseV value.Value
	h, thenV, err = ip.expr(en, h, n.Then)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		thenV = value.Any
	}
	h, elseV, err = ip.expr(en, h, n.Else)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		elseV = value.Any
	}
	var merged value.Value
	h, merged = ip.unify(h, thenV, elseV)
	return h, merged, nil
}

func (ip *Interpreter) evalAssignment(en *env.Env, h *value.Heap, n *ast.AssignmentExpression) (*value.Heap, value.Value, error) {
	h2, sl, err := ip.resolveTarget(en, h, n.Target)
	if err != nil {
		return h2, nil, err
	}
	var rhs value.Value
	h2, rhs, err = ip.expr(en, h2, n.Value)
	if err != nil {
		if ip.Opts.Strict {
			return h2, nil, err
		}
		rhs = value.Any
	}
	if n.Operator != "" {
		cur := sl.read(h2)
		rhs = ip.combineCompound(h2, compoundBaseOp(n.Operator), cur, rhs)
	}
	h2 = sl.write(h2, rhs)
	return h2, rhs, nil
}

func (ip *Interpreter) combineCompound(h *value.Heap, base string, cur, rhs value.Value) value.Value {
	if isConcatOp(base) {
		return ip.Taint.ConcatFold(cur, rhs)
	}
	if isLogicalOp(base) {
		return value.NewAbstractType(value.TypeBool)
	}
	if isIntShaped(cur) && isIntShaped(rhs) {
		return value.NewAbstractType(value.TypeInt)
	}
	return value.NewSum(value.Null, value.NewAbstractType(value.TypeInt))
}

// evalListAssignment rewrites `list($a, $b) = $pair` into indexed
// assignments against one evaluated right-hand side (§4.E).
func (ip *Interpreter) evalListAssignment(en *env.Env, h *value.Heap, n *ast.ListAssignmentExpression) (*value.Heap, value.Value, error) {
	h, rhs, err := ip.expr(en, h, n.Value)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		rhs = value.Any
	}
	for i, target := range n.Targets {
		if target == nil {
			continue
		}
		h2, sl, terr := ip.resolveTarget(en, h, target)
		h = h2
		if terr != nil {
			if ip.Opts.Strict {
				return h, nil, terr
			}
			continue
		}
		var elem value.Value
		h, elem = ip.indexRead(h, rhs, value.IntValue{Val: bigInt(i)})
		h = sl.write(h, elem)
	}
	return h, rhs, nil
}

func (ip *Interpreter) evalCall(en *env.Env, h *value.Heap, n *ast.Call) (*value.Heap, value.Value, error) {
	if id, ok := n.Callee.(*ast.Identifier); ok && !env.IsVariable(id.Name) {
		return ip.callDirect(en, h, id.Name, n.Arguments)
	}
	h2, calleeVal, err := ip.expr(en, h, n.Callee)
	if err != nil {
		return h2, nil, err
	}
	return ip.callDynamic(en, h2, calleeVal, n.Arguments)
}

func (ip *Interpreter) callDirect(en *env.Env, h *value.Heap, name string, argExprs []ast.Expression) (*value.Heap, value.Value, error) {
	switch name {
	case "id":
		if len(argExprs) == 1 {
			return ip.expr(en, h, argExprs[0])
		}
	case "show":
		if len(argExprs) == 1 {
			h2, _, err := ip.expr(en, h, argExprs[0])
			return h2, value.Null, err
		}
	case "checkpoint":
		if len(argExprs) == 0 {
			ip.Checkpoint = &Checkpoint{Heap: h.Clone(), Vars: en.Vars.Clone()}
			return h, value.Null, nil
		}
	}

	fd, ok := en.DB.Function(name)
	ip.Graph.AddEdge(currentCaller(en), callgraph.Function(name))
	if !ok {
		if ip.Opts.Strict {
			return h, nil, UnknownFunction{Name: name}
		}
		return h, ip.Taint.UnknownCallSummary(name), nil
	}
	return ip.callFun(en, h, fd, argExprs)
}

func (ip *Interpreter) callDynamic(en *env.Env, h *value.Heap, calleeVal value.Value, argExprs []ast.Expression) (*value.Heap, value.Value, error) {
	switch cv := calleeVal.(type) {
	case value.StringValue:
		return ip.callDirect(en, h, cv.Val, argExprs)
	case value.MethodValue:
		return ip.callMethodValue(en, h, cv, argExprs, "", "")
	case value.TaintValue:
		return h, cv, nil
	case value.AnyValue:
		return h, value.Any, nil
	default:
		if ip.Opts.Strict {
			return h, nil, LostControl{Detail: fmt.Sprintf("dynamic call target shape %s", calleeVal.Kind())}
		}
		return h, value.Any, nil
	}
}

func (ip *Interpreter) evalNew(en *env.Env, h *value.Heap, n *ast.New) (*value.Heap, value.Value, error) {
	var className string
	if id, ok := n.ClassExpr.(*ast.Identifier); ok && !env.IsVariable(id.Name) {
		className = id.Name
	} else {
		h2, cv, err := ip.expr(en, h, n.ClassExpr)
		h = h2
		if err != nil {
			if ip.Opts.Strict {
				return h, nil, err
			}
		}
		if sv, ok := cv.(value.StringValue); ok {
			className = sv.Val
		} else {
			if ip.Opts.Strict {
				return h, nil, LostControl{Detail: "new expression with a non-literal, non-string class reference"}
			}
			return h, value.Any, nil
		}
	}

	h, classObj, err := ip.forceClass(en, h, className)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		return h, value.Any, nil
	}
	ip.Graph.AddEdge(currentCaller(en), callgraph.Method(className, env.MagicBuild))
	h, instAddr, err := ip.instantiate(en, h, classObj, className, n.Arguments)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		return h, value.Any, nil
	}
	inst, _ := h.Get(instAddr).(*value.ObjectValue)
	if inst == nil {
		return h, value.Any, nil
	}
	if _, has := inst.Members["__construct"]; has {
		ip.Graph.AddEdge(currentCaller(en), callgraph.Method(className, "__construct"))
		var cerr error
		h, _, cerr = ip.callMethodByName(en, h, inst, className, "__construct", n.Arguments)
		if cerr != nil && ip.Opts.Strict {
			return h, nil, cerr
		}
	}
	return h, inst, nil
}

func (ip *Interpreter) evalLambda(en *env.Env, h *value.Heap, n *ast.LambdaExpression) (*value.Heap, value.Value, error) {
	c := &closure{id: ip.freshClosureID(), name: "*lambda*", params: n.Parameters, body: n.Body}
	mv := value.NewMethod(value.Null)
	mv.Closures[c.id] = c
	return h, mv, nil
}

func (ip *Interpreter) resolveMember(en *env.Env, h *value.Heap, n *ast.ObjGet) (*value.Heap, string, error) {
	if n.Dynamic != nil {
		h2, v, err := ip.expr(en, h, n.Dynamic)
		if err != nil {
			return h2, "", err
		}
		if sv, ok := v.(value.StringValue); ok {
			return h2, sv.Val, nil
		}
		return h2, "", nil
	}
	return h, n.Member, nil
}

// resolveTarget builds the assignable slot for any expression that can
// stand on the left of `=` — a variable, an object/class member (with
// auto-vivification, §4.H), or a collection index (§4.E).
func (ip *Interpreter) resolveTarget(en *env.Env, h *value.Heap, target ast.Expression) (*value.Heap, *slot, error) {
	switch t := target.(type) {
	case *ast.Identifier:
		_, _, ptr, err := ip.lvalueIdentifier(en, h, t.Name)
		if err != nil {
			return h, nil, err
		}
		return h, &slot{
			read: func(h *value.Heap) value.Value { return ip.readVar(h, ptr) },
			write: func(h *value.Heap, v value.Value) *value.Heap {
				h2, _ := ip.assignVar(h, ptr, v)
				return h2
			},
		}, nil

	case *ast.ObjGet:
		h2, objVal, err := ip.expr(en, h, t.Object)
		if err != nil {
			return h2, nil, err
		}
		h2, member, err := ip.resolveMember(en, h2, t)
		if err != nil {
			return h2, nil, err
		}
		obj, ok := objVal.(*value.ObjectValue)
		if !ok {
			if ip.Opts.Strict {
				return h2, nil, UnknownObject{On: objVal.Kind().String()}
			}
			return h2, anySlot(), nil
		}
		if member == "" {
			return h2, anySlot(), nil
		}
		if _, exists := obj.Members[member]; !exists {
			if member != "__construct" && ip.Opts.Strict {
				return h2, nil, UnknownMethod{Name: member, Class: obj.ClassName, Candidates: memberNames(obj)}
			}
			obj.Members[member] = value.Null
		}
		return h2, &slot{
			read:  func(*value.Heap) value.Value { return obj.Members[member] },
			write: func(h *value.Heap, v value.Value) *value.Heap { obj.Members[member] = v; return h },
		}, nil

	case *ast.ClassGet:
		return ip.resolveClassTarget(en, h, t)

	case *ast.IndexExpression:
		h2, inner, err := ip.resolveTarget(en, h, t.Collection)
		if err != nil {
			return h2, nil, err
		}
		var idxVal value.Value
		h2, idxVal, err = ip.expr(en, h2, t.Index)
		if err != nil {
			return h2, nil, err
		}
		return h2, &slot{
			read: func(h *value.Heap) value.Value {
				_, v := ip.indexRead(h, inner.read(h), idxVal)
				return v
			},
			write: func(h *value.Heap, v value.Value) *value.Heap {
				coll := inner.read(h)
				h2, newColl := ip.indexWrite(h, coll, idxVal, v)
				return inner.write(h2, newColl)
			},
		}, nil

	default:
		return h, nil, Impossible{Detail: fmt.Sprintf("expression of type %T is not assignable", target)}
	}
}

func (ip *Interpreter) resolveClassTarget(en *env.Env, h *value.Heap, t *ast.ClassGet) (*value.Heap, *slot, error) {
	if t.Class == env.MagicSelf || t.Class == env.MagicParent {
		if addr, ok := en.Globals[t.Class]; ok {
			if p, isPtr := h.Get(addr).(value.PtrValue); isPtr {
				if obj, isObj := h.Get(p.Addr).(*value.ObjectValue); isObj {
					return h, objectMemberSlot(obj, t.Member), nil
				}
			}
		}
		return h, anySlot(), nil
	}
	h, classObj, err := ip.forceClass(en, h, t.Class)
	if err != nil {
		if ip.Opts.Strict {
			return h, nil, err
		}
		return h, anySlot(), nil
	}
	return h, objectMemberSlot(classObj, t.Member), nil
}

func objectMemberSlot(obj *value.ObjectValue, member string) *slot {
	if _, exists := obj.Members[member]; !exists {
		obj.Members[member] = value.Null
	}
	return &slot{
		read:  func(*value.Heap) value.Value { return obj.Members[member] },
		write: func(h *value.Heap, v value.Value) *value.Heap { obj.Members[member] = v; return h },
	}
}

func bigInt(i int) *big.Int { return big.NewInt(int64(i)) }
