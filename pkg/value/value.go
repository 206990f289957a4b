// Package value implements the symbolic value lattice and the heap it is
// threaded through (spec §3.1, §3.2, §4.A, §4.B). A Value is a tagged union;
// a Heap is a finite, monotonically-addressed store of Values. Every
// evaluation step in pkg/interp takes a Heap and returns it, possibly
// updated in place through the operations in heap.go.
package value

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Kind identifies which variant of the value lattice a Value implements.
type Kind int

const (
	KindAny Kind = iota
	KindNull
	KindAbstractType
	KindBool
	KindInt
	KindFloat
	KindString
	KindPtr
	KindRef
	KindRecord
	KindArray
	KindMap
	KindObject
	KindMethod
	KindSum
	KindTaint
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindNull:
		return "null"
	case KindAbstractType:
		return "abstract_type"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindPtr:
		return "ptr"
	case KindRef:
		return "ref"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	case KindMethod:
		return "method"
	case KindSum:
		return "sum"
	case KindTaint:
		return "taint"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Type names an AbstractType's underlying shape (spec §3.1).
type Type string

const (
	TypeInt    Type = "Int"
	TypeBool   Type = "Bool"
	TypeFloat  Type = "Float"
	TypeString Type = "String"
	TypeXhp    Type = "Xhp"
)

// Value is the shared behavior of every lattice element. Implementations are
// small value or pointer types; equality of two Values (where decidable) is
// plain Go `==` on the concrete type for everything except the collection
// variants, which compare via Equal.
type Value interface {
	Kind() Kind
}

//-----------------------------------------------------------------------------
// Any / Null / AbstractType
//-----------------------------------------------------------------------------

// AnyValue is the lattice top: no information.
type AnyValue struct{}

func (AnyValue) Kind() Kind { return KindAny }

// Any is the single shared top value; the lattice never needs more than one.
var Any = AnyValue{}

type NullValue struct{}

func (NullValue) Kind() Kind { return KindNull }

// Null is the distinguished null value.
var Null = NullValue{}

// AbstractTypeValue is a known type with unknown content.
type AbstractTypeValue struct {
	Type Type
}

func (AbstractTypeValue) Kind() Kind { return KindAbstractType }

func NewAbstractType(t Type) AbstractTypeValue { return AbstractTypeValue{Type: t} }

//-----------------------------------------------------------------------------
// Literals
//-----------------------------------------------------------------------------

type BoolValue struct{ Val bool }

func (BoolValue) Kind() Kind { return KindBool }

type IntValue struct{ Val *big.Int }

func (IntValue) Kind() Kind { return KindInt }

func NewInt(i int64) IntValue { return IntValue{Val: big.NewInt(i)} }

type FloatValue struct{ Val float64 }

func (FloatValue) Kind() Kind { return KindFloat }

type StringValue struct{ Val string }

func (StringValue) Kind() Kind { return KindString }

//-----------------------------------------------------------------------------
// Pointers and references (§4.B)
//-----------------------------------------------------------------------------

// Addr is a heap address. Zero is a valid address; there is no "null
// address" sentinel — absence is modeled by the Null value, never by Addr.
type Addr int

// PtrValue indirects to a single heap cell.
type PtrValue struct{ Addr Addr }

func (PtrValue) Kind() Kind { return KindPtr }

func NewPtr(a Addr) PtrValue { return PtrValue{Addr: a} }

// RefValue indirects to one of several possible heap cells — the result of
// unifying two Ptrs with different addresses (spec §4.C rule 5).
type RefValue struct{ Addrs map[Addr]struct{} }

func (RefValue) Kind() Kind { return KindRef }

// NewRef builds a RefValue from a set of addresses (order-independent,
// duplicates collapse).
func NewRef(addrs ...Addr) RefValue {
	m := make(map[Addr]struct{}, len(addrs))
	for _, a := range addrs {
		m[a] = struct{}{}
	}
	return RefValue{Addrs: m}
}

// SortedAddrs returns the address set in ascending order, for deterministic
// printing and testing.
func (r RefValue) SortedAddrs() []Addr {
	out := make([]Addr, 0, len(r.Addrs))
	for a := range r.Addrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Union returns the pointwise union of two address sets.
func (r RefValue) Union(other RefValue) RefValue {
	m := make(map[Addr]struct{}, len(r.Addrs)+len(other.Addrs))
	for a := range r.Addrs {
		m[a] = struct{}{}
	}
	for a := range other.Addrs {
		m[a] = struct{}{}
	}
	return RefValue{Addrs: m}
}

//-----------------------------------------------------------------------------
// Collections (§3.1)
//-----------------------------------------------------------------------------

// RecordValue is a string-keyed map with statically known keys (struct-like
// array literals, object field maps before they're wrapped as Object).
type RecordValue struct {
	Fields map[string]Value
}

func (RecordValue) Kind() Kind { return KindRecord }

func NewRecord() RecordValue { return RecordValue{Fields: make(map[string]Value)} }

// ArrayValue is a small, positional list — typically a literal's direct
// translation before any widening to Map occurs (§4.E, §9).
type ArrayValue struct {
	Elements []Value
}

func (ArrayValue) Kind() Kind { return KindArray }

// MapValue is the abstract unbounded associative collection: one summary
// key and one summary element, standing in for every entry (§3.1).
type MapValue struct {
	Key  Value
	Elem Value
}

func (MapValue) Kind() Kind { return KindMap }

// ObjectValue is a class instance: field and method names share one
// namespace, exactly like source-language objects do. Method entries are
// always MethodValue.
type ObjectValue struct {
	ClassName string
	Members   map[string]Value
}

func (ObjectValue) Kind() Kind { return KindObject }

func NewObject(className string) *ObjectValue {
	return &ObjectValue{ClassName: className, Members: make(map[string]Value)}
}

// Closure is an opaque callable body. This package only needs the
// declaration's name for printing; pkg/interp defines the concrete types
// satisfying this.
type Closure interface {
	ClosureName() string
}

// MethodValue is a dispatchable bundle of same-named overrides, disambiguated
// by id so that class-flattening unification doesn't merge distinct
// overrides into one closure (§3.1 invariant 4, §4.H).
type MethodValue struct {
	Receiver Value
	Closures map[string]Closure
}

func (MethodValue) Kind() Kind { return KindMethod }

func NewMethod(receiver Value) MethodValue {
	return MethodValue{Receiver: receiver, Closures: make(map[string]Closure)}
}

//-----------------------------------------------------------------------------
// Sum and Taint
//-----------------------------------------------------------------------------

// SumValue is a flat, deduplicated union of at least two alternatives
// (§3.1 invariant 1).
type SumValue struct {
	Alternatives []Value
}

func (SumValue) Kind() Kind { return KindSum }

// NewSum flattens nested Sums and removes structurally-equal duplicates. If
// one distinct alternative remains it returns that alternative, and if none
// remain it returns Null, so a SumValue always has at least two.
func NewSum(alts ...Value) Value {
	flat := make([]Value, 0, len(alts))
	for _, a := range alts {
		if s, ok := a.(SumValue); ok {
			flat = append(flat, s.Alternatives...)
		} else {
			flat = append(flat, a)
		}
	}
	deduped := make([]Value, 0, len(flat))
	for _, v := range flat {
		dup := false
		for _, existing := range deduped {
			if Equal(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, v)
		}
	}
	if len(deduped) == 1 {
		return deduped[0]
	}
	if len(deduped) == 0 {
		return Null
	}
	return SumValue{Alternatives: deduped}
}

// TaintValue is a sentinel carrying a label describing an untrusted origin
// (§4.I).
type TaintValue struct {
	Label string
}

func (TaintValue) Kind() Kind { return KindTaint }

func NewTaint(label string) TaintValue { return TaintValue{Label: label} }

//-----------------------------------------------------------------------------
// Structural equality (decidable cases only; everything else is kept
// conservatively distinct per §3.1 invariant 1).
//-----------------------------------------------------------------------------

// Equal reports whether two values are structurally identical. It is used
// by NewSum for deduplication and by the unifier's rule 1 fast path. It
// never recurses through Ptr/Ref (pointer identity is by address) and
// always returns false for Record/Array/Map/Object/Method, which are
// reference-like and considered distinct even when they are the same Go value.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case AnyValue:
		return true
	case NullValue:
		return true
	case AbstractTypeValue:
		return av.Type == b.(AbstractTypeValue).Type
	case BoolValue:
		return av.Val == b.(BoolValue).Val
	case IntValue:
		bv := b.(IntValue)
		if av.Val == nil || bv.Val == nil {
			return av.Val == bv.Val
		}
		return av.Val.Cmp(bv.Val) == 0
	case FloatValue:
		return av.Val == b.(FloatValue).Val
	case StringValue:
		return av.Val == b.(StringValue).Val
	case PtrValue:
		return av.Addr == b.(PtrValue).Addr
	case TaintValue:
		return av.Label == b.(TaintValue).Label
	case RefValue:
		bv := b.(RefValue)
		if len(av.Addrs) != len(bv.Addrs) {
			return false
		}
		for addr := range av.Addrs {
			if _, ok := bv.Addrs[addr]; !ok {
				return false
			}
		}
		return true
	case SumValue:
		bv := b.(SumValue)
		if len(av.Alternatives) != len(bv.Alternatives) {
			return false
		}
		for _, x := range av.Alternatives {
			found := false
			for _, y := range bv.Alternatives {
				if Equal(x, y) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		// RecordValue, ArrayValue, MapValue, ObjectValue, MethodValue: these
		// are reference-like in the source language (mutation through one
		// alias is visible through another) and are never structurally
		// compared by rule 1 — they fall straight through to unify's later
		// rules, which is the conservative and correct choice.
		return false
	}
}

//-----------------------------------------------------------------------------
// Printing (§4.A) — diagnostic only, must terminate on cyclic Ptr graphs.
//-----------------------------------------------------------------------------

// Print renders v for diagnostics, chasing Ptr through h. Each Ptr address
// is added to a copy of the set of addresses already on the current path
// before recursing into it, so a cycle prints as "<cycle>" instead of
// looping.
func Print(h *Heap, v Value) string {
	var b strings.Builder
	printValue(&b, h, v, map[Addr]struct{}{})
	return b.String()
}

func printValue(b *strings.Builder, h *Heap, v Value, visiting map[Addr]struct{}) {
	if v == nil {
		b.WriteString("<nil>")
		return
	}
	switch vv := v.(type) {
	case AnyValue:
		b.WriteString("Any")
	case NullValue:
		b.WriteString("Null")
	case AbstractTypeValue:
		fmt.Fprintf(b, "AbstractType(%s)", vv.Type)
	case BoolValue:
		fmt.Fprintf(b, "Bool(%v)", vv.Val)
	case IntValue:
		fmt.Fprintf(b, "Int(%s)", vv.Val.String())
	case FloatValue:
		fmt.Fprintf(b, "Float(%v)", vv.Val)
	case StringValue:
		fmt.Fprintf(b, "String(%q)", vv.Val)
	case PtrValue:
		if _, cycle := visiting[vv.Addr]; cycle {
			b.WriteString("<cycle>")
			return
		}
		next := make(map[Addr]struct{}, len(visiting)+1)
		for a := range visiting {
			next[a] = struct{}{}
		}
		next[vv.Addr] = struct{}{}
		fmt.Fprintf(b, "Ptr(%d -> ", vv.Addr)
		printValue(b, h, h.Get(vv.Addr), next)
		b.WriteString(")")
	case RefValue:
		b.WriteString("Ref{")
		for idx, a := range vv.SortedAddrs() {
			if idx > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%d", a)
		}
		b.WriteString("}")
	case *RecordValue:
		printRecordLike(b, h, vv.Fields, visiting)
	case RecordValue:
		printRecordLike(b, h, vv.Fields, visiting)
	case *ArrayValue:
		printArray(b, h, vv.Elements, visiting)
	case ArrayValue:
		printArray(b, h, vv.Elements, visiting)
	case MapValue:
		b.WriteString("Map(")
		printValue(b, h, vv.Key, visiting)
		b.WriteString(" -> ")
		printValue(b, h, vv.Elem, visiting)
		b.WriteString(")")
	case *ObjectValue:
		fmt.Fprintf(b, "Object<%s>", vv.ClassName)
	case MethodValue:
		fmt.Fprintf(b, "Method(#%d overrides)", len(vv.Closures))
	case SumValue:
		b.WriteString("Sum[")
		for idx, alt := range vv.Alternatives {
			if idx > 0 {
				b.WriteString(", ")
			}
			printValue(b, h, alt, visiting)
		}
		b.WriteString("]")
	case TaintValue:
		fmt.Fprintf(b, "Taint(%s)", vv.Label)
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

func printRecordLike(b *strings.Builder, h *Heap, fields map[string]Value, visiting map[Addr]struct{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("Record{")
	for idx, k := range keys {
		if idx > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s: ", k)
		printValue(b, h, fields[k], visiting)
	}
	b.WriteString("}")
}

func printArray(b *strings.Builder, h *Heap, elems []Value, visiting map[Addr]struct{}) {
	b.WriteString("Array[")
	for idx, e := range elems {
		if idx > 0 {
			b.WriteString(", ")
		}
		printValue(b, h, e, visiting)
	}
	b.WriteString("]")
}
