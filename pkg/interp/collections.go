package interp

import "github.com/corewall/hackscan/pkg/value"

// indexRead implements an abstract collection index read (§4.E): a precise
// hit when the index is a literal that names a known slot, otherwise the
// unified summary of everything the collection could hold.
func (ip *Interpreter) indexRead(h *value.Heap, coll, idx value.Value) (*value.Heap, value.Value) {
	switch c := coll.(type) {
	case value.ArrayValue:
		if i, ok := intIndex(idx); ok && i >= 0 && i < len(c.Elements) {
			return h, c.Elements[i]
		}
		if len(c.Elements) == 0 {
			return h, value.Null
		}
		merged := c.Elements[0]
		for _, e := range c.Elements[1:] {
			h, merged = ip.unify(h, merged, e)
		}
		return h, merged
	case value.RecordValue:
		if sv, ok := idx.(value.StringValue); ok {
			if v, ok2 := c.Fields[sv.Val]; ok2 {
				return h, v
			}
		}
		if len(c.Fields) == 0 {
			return h, value.Null
		}
		var merged value.Value
		first := true
		for _, v := range c.Fields {
			if first {
				merged, first = v, false
				continue
			}
			h, merged = ip.unify(h, merged, v)
		}
		return h, merged
	case value.MapValue:
		return h, c.Elem
	default:
		return h, value.Any
	}
}

// indexWrite implements an abstract collection index write (§4.E, §3.1): it
// returns the collection's new value, widening Array/Record to Map when the
// index shape can't be resolved to a known slot.
func (ip *Interpreter) indexWrite(h *value.Heap, coll, idx, rhs value.Value) (*value.Heap, value.Value) {
	switch c := coll.(type) {
	case value.ArrayValue:
		if i, ok := intIndex(idx); ok {
			if i >= 0 && i < len(c.Elements) {
				elems := append([]value.Value{}, c.Elements...)
				var merged value.Value
				h, merged = ip.unify(h, elems[i], rhs)
				elems[i] = merged
				return h, value.ArrayValue{Elements: elems}
			}
			if i == len(c.Elements) {
				elems := append(append([]value.Value{}, c.Elements...), rhs)
				return h, value.ArrayValue{Elements: elems}
			}
		}
		return ip.widenToMap(h, coll, idx, rhs)
	case value.RecordValue:
		if sv, ok := idx.(value.StringValue); ok {
			out := value.NewRecord()
			for k, v := range c.Fields {
				out.Fields[k] = v
			}
			if old, exists := out.Fields[sv.Val]; exists {
				var merged value.Value
				h, merged = ip.unify(h, old, rhs)
				out.Fields[sv.Val] = merged
			} else {
				out.Fields[sv.Val] = rhs
			}
			return h, out
		}
		return ip.widenToMap(h, coll, idx, rhs)
	case value.MapValue:
		var k, e value.Value
		h, k = ip.unify(h, c.Key, idx)
		h, e = ip.unify(h, c.Elem, rhs)
		return h, value.MapValue{Key: k, Elem: e}
	default:
		if _, ok := intIndex(idx); ok {
			return h, value.ArrayValue{Elements: []value.Value{rhs}}
		}
		if sv, ok := idx.(value.StringValue); ok {
			out := value.NewRecord()
			out.Fields[sv.Val] = rhs
			return h, out
		}
		return h, value.MapValue{Key: idx, Elem: rhs}
	}
}

// widenToMap collapses an Array or Record container (whose index shape is
// no longer staticaly known) into a summary Map, folding every existing
// element/field plus the new write into the map's single key/elem pair.
func (ip *Interpreter) widenToMap(h *value.Heap, coll, idx, rhs value.Value) (*value.Heap, value.Value) {
	var key value.Value = value.Null
	var elem value.Value = value.Null
	switch c := coll.(type) {
	case value.ArrayValue:
		key = value.NewAbstractType(value.TypeInt)
		for _, v := range c.Elements {
			h, elem = unifyOrReplace(ip, h, elem, v)
		}
	case value.RecordValue:
		key = value.NewAbstractType(value.TypeString)
		for _, v := range c.Fields {
			h, elem = unifyOrReplace(ip, h, elem, v)
		}
	}
	h, key = unifyOrReplace(ip, h, key, idx)
	h, elem = unifyOrReplace(ip, h, elem, rhs)
	return h, value.MapValue{Key: key, Elem: elem}
}

func intIndex(v value.Value) (int, bool) {
	iv, ok := v.(value.IntValue)
	if !ok || iv.Val == nil || !iv.Val.IsInt64() {
		return 0, false
	}
	return int(iv.Val.Int64()), true
}
