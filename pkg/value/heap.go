package value

// Heap is a finite mapping from monotonically-allocated addresses to
// Values (§3.2). There is no garbage collection — analysis runs are finite,
// and cells are replaced in place, never reclaimed.
type Heap struct {
	cells []Value
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{cells: make([]Value, 0, 64)}
}

// NewCell allocates a fresh address holding Null and returns it (§4.B).
func (h *Heap) NewCell() Addr {
	return h.NewCellWith(Null)
}

// NewCellWith allocates a fresh address holding the given value.
func (h *Heap) NewCellWith(v Value) Addr {
	h.cells = append(h.cells, v)
	return Addr(len(h.cells) - 1)
}

// Get returns heap[addr]; a missing or out-of-range address behaves as Null,
// the conservative default (§4.B).
func (h *Heap) Get(addr Addr) Value {
	if addr < 0 || int(addr) >= len(h.cells) {
		return Null
	}
	v := h.cells[addr]
	if v == nil {
		return Null
	}
	return v
}

// Set replaces heap[addr] with v. Setting an address beyond the current
// length is a caller error (every Addr in circulation was handed out by
// NewCell) and is treated as a no-op rather than panicking, matching the
// heap's overall conservative-on-bad-input stance.
func (h *Heap) Set(addr Addr, v Value) {
	if addr < 0 || int(addr) >= len(h.cells) {
		return
	}
	h.cells[addr] = v
}

// Len reports the number of allocated cells, mainly for diagnostics and
// tests.
func (h *Heap) Len() int { return len(h.cells) }

// Chase performs a single indirection step: if v is a Ptr, returns the
// pointee; otherwise returns v unchanged. It never follows more than one
// hop, matching §4.B's "single step only" note — code that reaches through
// the doubly-indirected variable-cell model (§3.1 invariant 3), such as
// readVar in pkg/interp, takes both hops itself, so the two-hop structure
// stays visible at the call site instead of being hidden in a loop here.
func (h *Heap) Chase(v Value) Value {
	if p, ok := v.(PtrValue); ok {
		return h.Get(p.Addr)
	}
	return v
}

// Clone returns a heap with the same cell contents, backed by a fresh
// slice. Interpreter excursions (§4.G call engine, §4.F branch evaluation)
// never need this — the heap is threaded through return values, not copied
// wholesale — but the interpreter's checkpoint hook uses it to keep a
// snapshot that later evaluation does not change.
func (h *Heap) Clone() *Heap {
	cells := make([]Value, len(h.cells))
	copy(cells, h.cells)
	return &Heap{cells: cells}
}
