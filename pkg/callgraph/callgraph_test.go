package callgraph

import (
	"reflect"
	"testing"
)

func TestNodeStringForms(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"fakeroot", FakeRoot(), "FakeRoot"},
		{"file", File("a.php"), "File:a.php"},
		{"function", Function("greet"), "Function:greet"},
		{"method", Method("Widget", "render"), "Method:Widget::render"},
	}
	for _, tt := range tests {
		if got := tt.node.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAddEdgeAndCalleesDeterministic(t *testing.T) {
	g := New()
	caller := Function("main")
	g.AddEdge(caller, Function("b"))
	g.AddEdge(caller, Function("a"))
	g.AddEdge(caller, Function("a"))

	got := g.Callees(caller)
	want := []Node{Function("a"), Function("b")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Callees = %v, want %v (sorted, deduplicated)", got, want)
	}
}

func TestCallersListsEveryCallerOnce(t *testing.T) {
	g := New()
	g.AddEdge(Function("main"), Function("helper"))
	g.AddEdge(Function("helper"), Function("leaf"))
	g.AddEdge(Function("main"), Function("leaf"))

	got := g.Callers()
	want := []Node{Function("helper"), Function("main")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Callers = %v, want %v", got, want)
	}
}

func TestMergeFoldsEdges(t *testing.T) {
	a := New()
	a.AddEdge(Function("main"), Function("helper"))

	b := New()
	b.AddEdge(Function("main"), Function("other"))
	b.AddEdge(Function("helper"), Function("leaf"))

	a.Merge(b)

	gotMain := a.Callees(Function("main"))
	wantMain := []Node{Function("helper"), Function("other")}
	if !reflect.DeepEqual(gotMain, wantMain) {
		t.Fatalf("after Merge, Callees(main) = %v, want %v", gotMain, wantMain)
	}
	gotHelper := a.Callees(Function("helper"))
	wantHelper := []Node{Function("leaf")}
	if !reflect.DeepEqual(gotHelper, wantHelper) {
		t.Fatalf("after Merge, Callees(helper) = %v, want %v", gotHelper, wantHelper)
	}
}

func TestLinesSortedAndStable(t *testing.T) {
	g := New()
	g.AddEdge(Function("main"), Function("b"))
	g.AddEdge(Function("main"), Function("a"))
	g.AddEdge(FakeRoot(), Function("main"))

	got := g.Lines()
	want := []string{
		"FakeRoot -> Function:main",
		"Function:main -> Function:a",
		"Function:main -> Function:b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
}

func TestEmptyGraphHasNoLines(t *testing.T) {
	g := New()
	if lines := g.Lines(); len(lines) != 0 {
		t.Fatalf("expected no lines from an empty graph, got %v", lines)
	}
}
