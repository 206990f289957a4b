package interp

import (
	"github.com/corewall/hackscan/pkg/value"
)

// readVar dereferences the second hop of a variable's cell (spec §3.1
// invariant 3): ptr.Addr holds either nothing yet (Null, never assigned),
// a Ptr to the value cell, or a Ref to several aliased value cells (the
// product of unifying two aliases together).
func (ip *Interpreter) readVar(h *value.Heap, ptr value.PtrValue) value.Value {
	hop1 := h.Get(ptr.Addr)
	switch v := hop1.(type) {
	case value.PtrValue:
		return h.Get(v.Addr)
	case value.RefValue:
		addrs := v.SortedAddrs()
		if len(addrs) == 0 {
			return value.Null
		}
		merged := h.Get(addrs[0])
		for _, a := range addrs[1:] {
			var mv value.Value
			h, mv = ip.unify(h, merged, h.Get(a))
			merged = mv
		}
		return merged
	default:
		return value.Null
	}
}

// ensureCell guarantees ptr.Addr's first hop is a Ptr to some value cell,
// materializing one holding Null if the variable was never assigned, and
// returns that inner address. Used by by-reference parameter binding to
// hand the callee a slot that shares the caller's value cell (spec §4.G).
func (ip *Interpreter) ensureCell(h *value.Heap, ptr value.PtrValue) value.Addr {
	hop1 := h.Get(ptr.Addr)
	if p, ok := hop1.(value.PtrValue); ok {
		return p.Addr
	}
	b := h.NewCell()
	h.Set(ptr.Addr, value.NewPtr(b))
	return b
}

// assignVar implements `assign(heap, fresh, ptr, rhs)` (spec §4.E): on the
// variable's first write it materializes a value cell holding rhs; on
// subsequent writes it unifies rhs into the existing cell(s) (plural when
// aliased via Ref). Returns the value now held.
func (ip *Interpreter) assignVar(h *value.Heap, ptr value.PtrValue, rhs value.Value) (*value.Heap, value.Value) {
	hop1 := h.Get(ptr.Addr)
	switch v := hop1.(type) {
	case value.PtrValue:
		cur := h.Get(v.Addr)
		var merged value.Value
		h, merged = ip.unify(h, cur, rhs)
		h.Set(v.Addr, merged)
		return h, merged
	case value.RefValue:
		addrs := v.SortedAddrs()
		merged := rhs
		for _, a := range addrs {
			var mv value.Value
			h, mv = ip.unify(h, merged, h.Get(a))
			merged = mv
		}
		for _, a := range addrs {
			h.Set(a, merged)
		}
		return h, merged
	default:
		b := h.NewCellWith(rhs)
		h.Set(ptr.Addr, value.NewPtr(b))
		return h, rhs
	}
}
