package interp

import (
	"sort"

	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

// currentCaller returns the top of the call chain, used as the caller side
// of a call-graph edge (spec §6.2).
func currentCaller(en *env.Env) callgraph.Node {
	if len(en.Path) == 0 {
		return callgraph.FakeRoot()
	}
	return en.Path[len(en.Path)-1]
}

// memberNames lists an object's member names, sorted, for UnknownMethod's
// diagnostic Candidates field.
func memberNames(obj *value.ObjectValue) []string {
	out := make([]string, 0, len(obj.Members))
	for k := range obj.Members {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedClosureIDs(m map[string]value.Closure) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// anySlot is the fallback assignment slot for a target that can't be
// resolved precisely in non-strict mode: reads as Any, writes are dropped.
func anySlot() *slot {
	return &slot{
		read:  func(*value.Heap) value.Value { return value.Any },
		write: func(h *value.Heap, _ value.Value) *value.Heap { return h },
	}
}

// valueShapeType reports the AbstractType a literal value corresponds to, ok
// is false for non-literal shapes.
func valueShapeType(v value.Value) (value.Type, bool) {
	switch v.(type) {
	case value.BoolValue:
		return value.TypeBool, true
	case value.IntValue:
		return value.TypeInt, true
	case value.FloatValue:
		return value.TypeFloat, true
	case value.StringValue:
		return value.TypeString, true
	}
	return "", false
}

// unaryResultType maps a unary operator to the type it's expected to
// produce (spec §4.E: "precise on literals, AbstractType on abstract
// operands, Sum([Null, AbstractType(t)]) on unrelated inputs" — t here).
func unaryResultType(op string) value.Type {
	switch op {
	case "!", "not":
		return value.TypeBool
	case "-", "+", "~", "++", "--":
		return value.TypeInt
	default:
		return value.TypeInt
	}
}

var logicalOps = map[string]bool{
	"&&": true, "||": true, "and": true, "or": true, "xor": true,
	"==": true, "!=": true, "===": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true, "<>": true,
}

func isLogicalOp(op string) bool { return logicalOps[op] }

func isConcatOp(op string) bool { return op == "." }

func isIntShaped(v value.Value) bool {
	if v.Kind() == value.KindInt {
		return true
	}
	if at, ok := v.(value.AbstractTypeValue); ok {
		return at.Type == value.TypeInt
	}
	return false
}

// compoundBaseOp strips the trailing "=" from a compound-assignment operator
// ("+=" -> "+", ".=" -> "."), per §4.E's compound-operator handling.
func compoundBaseOp(op string) string {
	if len(op) > 1 && op[len(op)-1] == '=' && op != "==" && op != "!=" && op != "<=" && op != ">=" {
		return op[:len(op)-1]
	}
	return op
}
