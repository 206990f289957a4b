package value

import (
	"math/big"
	"testing"
)

func TestEqualConcrete(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"ints equal", IntValue{Val: big.NewInt(3)}, IntValue{Val: big.NewInt(3)}, true},
		{"ints differ", IntValue{Val: big.NewInt(3)}, IntValue{Val: big.NewInt(4)}, false},
		{"bools equal", BoolValue{Val: true}, BoolValue{Val: true}, true},
		{"strings differ", StringValue{Val: "a"}, StringValue{Val: "b"}, false},
		{"different kinds", IntValue{Val: big.NewInt(1)}, BoolValue{Val: true}, false},
		{"any equal", Any, Any, true},
		{"null equal", Null, Null, true},
		{"abstract type equal", NewAbstractType(TypeInt), NewAbstractType(TypeInt), true},
		{"abstract type differ", NewAbstractType(TypeInt), NewAbstractType(TypeString), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEqualReferenceLikeAlwaysDistinct(t *testing.T) {
	a := NewRecord()
	b := NewRecord()
	if Equal(a, b) {
		t.Fatalf("two distinct RecordValues must never compare Equal")
	}
	obj1 := NewObject("Foo")
	obj2 := NewObject("Foo")
	if Equal(obj1, obj2) {
		t.Fatalf("two distinct *ObjectValue must never compare Equal")
	}
}

func TestNewSumDedupAndFlatten(t *testing.T) {
	s := NewSum(NewAbstractType(TypeInt), NewAbstractType(TypeString), NewAbstractType(TypeInt))
	sv, ok := s.(SumValue)
	if !ok {
		t.Fatalf("expected SumValue, got %T", s)
	}
	if len(sv.Alternatives) != 2 {
		t.Fatalf("expected 2 deduplicated alternatives, got %d: %v", len(sv.Alternatives), sv.Alternatives)
	}
}

func TestNewSumFlattensNested(t *testing.T) {
	inner := NewSum(NewAbstractType(TypeInt), NewAbstractType(TypeBool))
	s := NewSum(inner, NewAbstractType(TypeString))
	sv, ok := s.(SumValue)
	if !ok {
		t.Fatalf("expected SumValue, got %T", s)
	}
	if len(sv.Alternatives) != 3 {
		t.Fatalf("expected a flat 3-alternative sum, got %d: %v", len(sv.Alternatives), sv.Alternatives)
	}
}

func TestNewSumSingleAlternativeCollapses(t *testing.T) {
	s := NewSum(NewAbstractType(TypeInt), NewAbstractType(TypeInt))
	if _, ok := s.(SumValue); ok {
		t.Fatalf("a sum with one distinct alternative should collapse to that alternative, got SumValue")
	}
	if !Equal(s, NewAbstractType(TypeInt)) {
		t.Fatalf("collapsed sum should equal the lone alternative, got %v", s)
	}
}

func TestNewSumNoAlternativesIsNull(t *testing.T) {
	s := NewSum()
	if !Equal(s, Null) {
		t.Fatalf("NewSum() with no alternatives should be Null, got %v", s)
	}
}

func TestPrintTerminatesOnCycle(t *testing.T) {
	h := NewHeap()
	a := h.NewCell()
	b := h.NewCellWith(NewPtr(a))
	h.Set(a, NewPtr(b))

	if s := Print(h, NewPtr(a)); s == "" {
		t.Fatalf("expected non-empty cycle rendering")
	}
}
