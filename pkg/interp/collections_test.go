package interp

import (
	"testing"

	"github.com/corewall/hackscan/pkg/value"
)

func TestIndexReadArrayLiteralHit(t *testing.T) {
	ip, _, h := newTestEnv()
	arr := value.ArrayValue{Elements: []value.Value{value.NewInt(10), value.NewInt(20)}}
	_, got := ip.indexRead(h, arr, value.NewInt(1))
	if !value.Equal(got, value.NewInt(20)) {
		t.Fatalf("indexRead(arr, 1) = %v, want 20", got)
	}
}

func TestIndexReadArrayOutOfRangeMergesElements(t *testing.T) {
	ip, _, h := newTestEnv()
	arr := value.ArrayValue{Elements: []value.Value{value.NewInt(1), value.StringValue{Val: "x"}}}
	_, got := ip.indexRead(h, arr, value.NewInt(99))
	sv, ok := got.(value.SumValue)
	if !ok || len(sv.Alternatives) != 2 {
		t.Fatalf("indexRead with an unresolvable index should merge every element, got %v", got)
	}
}

func TestIndexReadEmptyArrayIsNull(t *testing.T) {
	ip, _, h := newTestEnv()
	_, got := ip.indexRead(h, value.ArrayValue{}, value.NewInt(0))
	if !value.Equal(got, value.Null) {
		t.Fatalf("indexRead on an empty array = %v, want Null", got)
	}
}

func TestIndexReadRecordFieldHit(t *testing.T) {
	ip, _, h := newTestEnv()
	rec := value.NewRecord()
	rec.Fields["x"] = value.NewInt(5)
	_, got := ip.indexRead(h, rec, value.StringValue{Val: "x"})
	if !value.Equal(got, value.NewInt(5)) {
		t.Fatalf("indexRead(record, \"x\") = %v, want 5", got)
	}
}

func TestIndexReadMapAlwaysReturnsElem(t *testing.T) {
	ip, _, h := newTestEnv()
	m := value.MapValue{Key: value.NewAbstractType(value.TypeString), Elem: value.NewAbstractType(value.TypeInt)}
	_, got := ip.indexRead(h, m, value.StringValue{Val: "anything"})
	if !value.Equal(got, value.NewAbstractType(value.TypeInt)) {
		t.Fatalf("indexRead(map, _) = %v, want the map's Elem", got)
	}
}

func TestIndexWriteArrayAppendAtNextIndex(t *testing.T) {
	ip, _, h := newTestEnv()
	arr := value.ArrayValue{Elements: []value.Value{value.NewInt(1)}}
	_, got := ip.indexWrite(h, arr, value.NewInt(1), value.NewInt(2))
	out, ok := got.(value.ArrayValue)
	if !ok || len(out.Elements) != 2 {
		t.Fatalf("expected a 2-element array after appending at the next index, got %v", got)
	}
}

func TestIndexWriteArrayNonSequentialIndexWidensToMap(t *testing.T) {
	ip, _, h := newTestEnv()
	arr := value.ArrayValue{Elements: []value.Value{value.NewInt(1)}}
	_, got := ip.indexWrite(h, arr, value.NewInt(5), value.NewInt(2))
	if _, ok := got.(value.MapValue); !ok {
		t.Fatalf("expected a skipped index to widen the array to MapValue, got %T", got)
	}
}

func TestIndexWriteRecordNewFieldAdds(t *testing.T) {
	ip, _, h := newTestEnv()
	rec := value.NewRecord()
	rec.Fields["x"] = value.NewInt(1)
	_, got := ip.indexWrite(h, rec, value.StringValue{Val: "y"}, value.NewInt(2))
	out, ok := got.(value.RecordValue)
	if !ok {
		t.Fatalf("expected RecordValue, got %T", got)
	}
	if !value.Equal(out.Fields["x"], value.NewInt(1)) || !value.Equal(out.Fields["y"], value.NewInt(2)) {
		t.Fatalf("expected both fields present, got %v", out.Fields)
	}
}

func TestIndexWriteRecordNonStringKeyWidensToMap(t *testing.T) {
	ip, _, h := newTestEnv()
	rec := value.NewRecord()
	rec.Fields["x"] = value.NewInt(1)
	_, got := ip.indexWrite(h, rec, value.NewInt(0), value.NewInt(2))
	if _, ok := got.(value.MapValue); !ok {
		t.Fatalf("expected a non-string key to widen the record to MapValue, got %T", got)
	}
}

func TestIndexWriteOnNullSeedsArrayOrRecord(t *testing.T) {
	ip, _, h := newTestEnv()
	_, arrGot := ip.indexWrite(h, value.Null, value.NewInt(0), value.NewInt(1))
	if _, ok := arrGot.(value.ArrayValue); !ok {
		t.Fatalf("expected an int index on Null to seed an ArrayValue, got %T", arrGot)
	}
	_, recGot := ip.indexWrite(h, value.Null, value.StringValue{Val: "k"}, value.NewInt(1))
	if _, ok := recGot.(value.RecordValue); !ok {
		t.Fatalf("expected a string index on Null to seed a RecordValue, got %T", recGot)
	}
}
