// Package unify implements the value-domain unifier (spec §4.C): computing
// a sound upper bound of two symbolic values, threading the heap so that
// Ptr/Ref contents can be merged recursively without looping on cycles.
package unify

import (
	"sort"

	"github.com/corewall/hackscan/pkg/value"
)

// TaintPolicy lets the taint module (pkg/taint) fold taint into a unify
// result however its propagation policy dictates (spec §4.C rule 10,
// §4.I). When nil, or when it declines by returning ok=false, Unify falls
// back to flat Sum folding, which is always sound.
type TaintPolicy interface {
	FoldUnify(a, b value.Value) (result value.Value, ok bool)
}

// pairKey identifies a (addr, addr) unification in progress, for the
// cyclic-heap visited set (§4.C, final paragraph).
type pairKey struct{ a, b value.Addr }

// Unifier holds the optional taint policy used by rule 10; the zero value
// is ready to use with the default (Sum-folding) taint behavior.
type Unifier struct {
	Taint TaintPolicy
}

// New returns a Unifier using the given taint policy (nil is fine).
func New(policy TaintPolicy) *Unifier {
	return &Unifier{Taint: policy}
}

// Unify merges v1 and v2 into a sound upper bound, applying §4.C's rules in
// order and threading heap mutations (recursive merges of Ptr/Ref contents
// write back into h). It terminates on cyclic heaps via a visited set of
// address pairs.
func (u *Unifier) Unify(h *value.Heap, v1, v2 value.Value) (*value.Heap, value.Value) {
	return u.unify(h, v1, v2, map[pairKey]struct{}{})
}

func (u *Unifier) unify(h *value.Heap, v1, v2 value.Value, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	// Rule 1: structural equality.
	if value.Equal(v1, v2) {
		return h, v1
	}

	// Rule 2: Any absorbs everything.
	if v1.Kind() == value.KindAny || v2.Kind() == value.KindAny {
		return h, value.Any
	}

	// Rule 10 (taint) is consulted before the type-shape rules below: taint
	// can appear alongside any other variant, and the policy gets first
	// refusal on every pairing that isn't already handled by rules 1–2.
	if v1.Kind() == value.KindTaint || v2.Kind() == value.KindTaint {
		if u.Taint != nil {
			if folded, ok := u.Taint.FoldUnify(v1, v2); ok {
				return h, folded
			}
		}
		return h, value.NewSum(v1, v2)
	}

	switch a := v1.(type) {
	case value.BoolValue:
		if b, ok := v2.(value.BoolValue); ok {
			if a.Val == b.Val {
				return h, a
			}
			return h, value.NewAbstractType(value.TypeBool)
		}
		if bt, ok := v2.(value.AbstractTypeValue); ok && bt.Type == value.TypeBool {
			return h, bt
		}
	case value.IntValue:
		if b, ok := v2.(value.IntValue); ok {
			if a.Val != nil && b.Val != nil && a.Val.Cmp(b.Val) == 0 {
				return h, a
			}
			return h, value.NewAbstractType(value.TypeInt)
		}
		if bt, ok := v2.(value.AbstractTypeValue); ok && bt.Type == value.TypeInt {
			return h, bt
		}
	case value.FloatValue:
		if b, ok := v2.(value.FloatValue); ok {
			if a.Val == b.Val {
				return h, a
			}
			return h, value.NewAbstractType(value.TypeFloat)
		}
		if bt, ok := v2.(value.AbstractTypeValue); ok && bt.Type == value.TypeFloat {
			return h, bt
		}
	case value.StringValue:
		if b, ok := v2.(value.StringValue); ok {
			if a.Val == b.Val {
				return h, a
			}
			return h, value.NewAbstractType(value.TypeString)
		}
		if bt, ok := v2.(value.AbstractTypeValue); ok && bt.Type == value.TypeString {
			return h, bt
		}
	case value.AbstractTypeValue:
		// Literal vs AbstractType is symmetric; handled by the literal arms
		// above when v1 is the literal. Here v1 is already abstract: check
		// whether v2 is the same literal type (rule 4) or the same
		// AbstractType (rule 1, already handled).
		switch b := v2.(type) {
		case value.BoolValue:
			if a.Type == value.TypeBool {
				return h, a
			}
		case value.IntValue:
			if a.Type == value.TypeInt {
				return h, a
			}
		case value.FloatValue:
			if a.Type == value.TypeFloat {
				return h, a
			}
		case value.StringValue:
			if a.Type == value.TypeString {
				return h, a
			}
		case value.AbstractTypeValue:
			if a.Type == b.Type {
				return h, a
			}
		}
	case value.PtrValue:
		switch b := v2.(type) {
		case value.PtrValue:
			return u.unifyPtrs(h, a, b, visiting)
		case value.RefValue:
			return u.unifyRef(h, b.Union(value.NewRef(a.Addr)), visiting)
		}
	case value.RefValue:
		switch b := v2.(type) {
		case value.PtrValue:
			return u.unifyRef(h, a.Union(value.NewRef(b.Addr)), visiting)
		case value.RefValue:
			return u.unifyRef(h, a.Union(b), visiting)
		}
	case *value.RecordValue:
		if b, ok := asRecord(v2); ok {
			return u.unifyRecords(h, a, b, visiting)
		}
	case value.RecordValue:
		if b, ok := asRecord(v2); ok {
			return u.unifyRecords(h, &a, b, visiting)
		}
	case *value.ObjectValue:
		if b, ok := v2.(*value.ObjectValue); ok {
			return u.unifyObjects(h, a, b, visiting)
		}
	case value.MethodValue:
		if b, ok := v2.(value.MethodValue); ok {
			return u.unifyMethods(h, a, b)
		}
	case value.MapValue:
		if b, ok := v2.(value.MapValue); ok {
			var k, e value.Value
			h, k = u.unify(h, a.Key, b.Key, visiting)
			h, e = u.unify(h, a.Elem, b.Elem, visiting)
			return h, value.MapValue{Key: k, Elem: e}
		}
		if arr, ok := arrayOf(v2); ok {
			return u.unifyMapArray(h, a, arr, visiting)
		}
	case *value.ArrayValue:
		if b, ok := v2.(*value.ArrayValue); ok {
			return u.unifyArrays(h, a.Elements, b.Elements)
		}
		if m, ok := v2.(value.MapValue); ok {
			return u.unifyMapArray(h, m, a.Elements, visiting)
		}
	case value.ArrayValue:
		if b, ok := arrayOf(v2); ok {
			return u.unifyArrays(h, a.Elements, b)
		}
		if m, ok := v2.(value.MapValue); ok {
			return u.unifyMapArray(h, m, a.Elements, visiting)
		}
	}

	// Rule 11: fall through to a flattened Sum.
	return h, value.NewSum(v1, v2)
}

func asRecord(v value.Value) (*value.RecordValue, bool) {
	switch r := v.(type) {
	case *value.RecordValue:
		return r, true
	case value.RecordValue:
		return &r, true
	}
	return nil, false
}

func arrayOf(v value.Value) ([]value.Value, bool) {
	switch a := v.(type) {
	case *value.ArrayValue:
		return a.Elements, true
	case value.ArrayValue:
		return a.Elements, true
	}
	return nil, false
}

// unifyPtrs implements rule 5: two Ptrs with different addresses unify to a
// Ref of the union of their addresses, with their pointees recursively
// unified and written back. Equal addresses were already caught by rule 1.
func (u *Unifier) unifyPtrs(h *value.Heap, a, b value.PtrValue, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	key := orderedKey(a.Addr, b.Addr)
	if _, seen := visiting[key]; seen {
		return h, value.NewRef(a.Addr, b.Addr)
	}
	next := copyVisiting(visiting)
	next[key] = struct{}{}

	var merged value.Value
	h, merged = u.unify(h, h.Get(a.Addr), h.Get(b.Addr), next)
	h.Set(a.Addr, merged)
	h.Set(b.Addr, merged)
	return h, value.NewRef(a.Addr, b.Addr)
}

// unifyRef merges the pointees of every address in a Ref's set pairwise and
// returns the (possibly-wider) Ref unchanged in shape — contents are merged
// in place on the heap, addresses themselves are never dropped.
func (u *Unifier) unifyRef(h *value.Heap, r value.RefValue, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	addrs := r.SortedAddrs()
	if len(addrs) <= 1 {
		return h, r
	}
	merged := h.Get(addrs[0])
	for _, a := range addrs[1:] {
		key := orderedKey(addrs[0], a)
		if _, seen := visiting[key]; seen {
			continue
		}
		next := copyVisiting(visiting)
		next[key] = struct{}{}
		h, merged = u.unify(h, merged, h.Get(a), next)
	}
	for _, a := range addrs {
		h.Set(a, merged)
	}
	return h, r
}

func orderedKey(a, b value.Addr) pairKey {
	if a <= b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

func copyVisiting(v map[pairKey]struct{}) map[pairKey]struct{} {
	next := make(map[pairKey]struct{}, len(v)+1)
	for k := range v {
		next[k] = struct{}{}
	}
	return next
}

// unifyRecords implements rule 6: field-wise union of keys, unifying on
// overlap and treating a one-sided-missing field as unifying with Null.
func (u *Unifier) unifyRecords(h *value.Heap, a, b *value.RecordValue, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	out := value.NewRecord()
	for _, k := range unionKeys(a.Fields, b.Fields) {
		av, aok := a.Fields[k]
		bv, bok := b.Fields[k]
		if !aok {
			av = value.Null
		}
		if !bok {
			bv = value.Null
		}
		var merged value.Value
		h, merged = u.unify(h, av, bv, visiting)
		out.Fields[k] = merged
	}
	return h, &out
}

// unifyObjects implements rule 7: same as Record, but method entries merge
// via the disjoint-key union inside MethodValue rather than plain unify,
// so distinct overrides survive (§3.1 invariant 4, §4.H).
func (u *Unifier) unifyObjects(h *value.Heap, a, b *value.ObjectValue, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	className := a.ClassName
	if className == "" {
		className = b.ClassName
	}
	out := value.NewObject(className)
	for _, k := range unionKeys(a.Members, b.Members) {
		av, aok := a.Members[k]
		bv, bok := b.Members[k]
		if aok && bok {
			if am, ok1 := av.(value.MethodValue); ok1 {
				if bm, ok2 := bv.(value.MethodValue); ok2 {
					var merged value.Value
					h, merged = u.unifyMethods(h, am, bm)
					out.Members[k] = merged
					continue
				}
			}
			var merged value.Value
			h, merged = u.unify(h, av, bv, visiting)
			out.Members[k] = merged
			continue
		}
		if aok {
			out.Members[k] = av
		} else {
			out.Members[k] = bv
		}
	}
	return h, out
}

// unifyMethods merges two Method bundles by disjoint-key union of their
// closures; a colliding id keeps the left side's closure, since collisions
// only happen when the same override is reached through two aliasing
// paths, not when two distinct overrides share an id.
func (u *Unifier) unifyMethods(h *value.Heap, a, b value.MethodValue) (*value.Heap, value.Value) {
	var receiver value.Value
	h, receiver = u.unify(h, a.Receiver, b.Receiver, map[pairKey]struct{}{})
	out := value.MethodValue{Receiver: receiver, Closures: make(map[string]value.Closure, len(a.Closures)+len(b.Closures))}
	for id, c := range a.Closures {
		out.Closures[id] = c
	}
	for id, c := range b.Closures {
		if _, exists := out.Closures[id]; !exists {
			out.Closures[id] = c
		}
	}
	return h, out
}

// unifyMapArray implements the Array/Map half of rule 9: once either side
// has widened to Map, the other's elements fold into the summary element.
func (u *Unifier) unifyMapArray(h *value.Heap, m value.MapValue, elems []value.Value, visiting map[pairKey]struct{}) (*value.Heap, value.Value) {
	key := m.Key
	elem := m.Elem
	for _, e := range elems {
		var mergedKey, mergedElem value.Value
		h, mergedKey = u.unify(h, key, value.NewAbstractType(value.TypeInt), visiting)
		h, mergedElem = u.unify(h, elem, e, visiting)
		key, elem = mergedKey, mergedElem
	}
	return h, value.MapValue{Key: key, Elem: elem}
}

// unifyArrays implements rule 9: two Arrays always promote to Map rather
// than trying to align elements positionally, since positions aren't
// tracked across unrelated control-flow branches.
func (u *Unifier) unifyArrays(h *value.Heap, a, b []value.Value) (*value.Heap, value.Value) {
	elem := value.Value(value.Null)
	first := true
	fold := func(v value.Value) {
		if first {
			elem = v
			first = false
			return
		}
		h, elem = u.unify(h, elem, v, map[pairKey]struct{}{})
	}
	for _, v := range a {
		fold(v)
	}
	for _, v := range b {
		fold(v)
	}
	if first {
		elem = value.Null
	}
	return h, value.MapValue{Key: value.NewAbstractType(value.TypeInt), Elem: elem}
}

func unionKeys(a, b map[string]value.Value) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		set[k] = struct{}{}
	}
	for k := range b {
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
