package interp

import (
	"math/big"
	"testing"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/callgraph"
	"github.com/corewall/hackscan/pkg/codedb"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

func TestNewFillsDefaultMaxDepthAndTaint(t *testing.T) {
	ip := New(Options{}, nil)
	if ip.Opts.MaxDepth != DefaultMaxDepth {
		t.Fatalf("expected MaxDepth defaulted to %d, got %d", DefaultMaxDepth, ip.Opts.MaxDepth)
	}
	if ip.Taint == nil || ip.Taint.Enabled() {
		t.Fatalf("expected a disabled taint module when none is supplied")
	}
}

func TestRunModuleNonStrictContinuesPastErrors(t *testing.T) {
	// `unknownFn();` followed by `$x = 1;` — in non-strict mode the unknown
	// call must not halt evaluation of the rest of the module's body.
	body := []ast.Statement{
		ast.NewCall(ast.NewIdentifier("unknownFn"), nil),
		ast.NewAssignmentExpression("", ast.NewIdentifier("$x"), ast.NewIntLiteral(big.NewInt(1))),
	}
	mod := ast.NewModule("f.php", body, nil, nil, nil)
	db := codedb.NewMemDB(mod)
	en := env.New(db, "f.php")
	h := value.NewHeap()

	ip := New(Options{Strict: false}, nil)
	h, err := ip.RunModule(en, h, mod)
	if err != nil {
		t.Fatalf("non-strict RunModule should not surface errors, got %v", err)
	}
	_, ptr := en.Get(h, "$x")
	got := ip.readVar(h, ptr)
	if !value.Equal(got, value.NewInt(1)) {
		t.Fatalf("expected $x = 1 despite the earlier unknown call, got %v", got)
	}
}

func TestRunModuleStrictHaltsOnUnknownFunction(t *testing.T) {
	body := []ast.Statement{
		ast.NewCall(ast.NewIdentifier("unknownFn"), nil),
		ast.NewAssignmentExpression("", ast.NewIdentifier("$x"), ast.NewIntLiteral(big.NewInt(1))),
	}
	mod := ast.NewModule("f.php", body, nil, nil, nil)
	db := codedb.NewMemDB(mod)
	en := env.New(db, "f.php")
	h := value.NewHeap()

	ip := New(Options{Strict: true}, nil)
	_, err := ip.RunModule(en, h, mod)
	if err == nil {
		t.Fatalf("expected strict RunModule to surface the unknown-function error")
	}
	if _, ok := err.(UnknownFunction); !ok {
		t.Fatalf("expected an UnknownFunction error, got %T (%v)", err, err)
	}
}

func TestRunModuleExtractPathsSweepsFunctionsAndClasses(t *testing.T) {
	fn := ast.NewFunctionDef("helper", nil, ast.NewBlock(nil))
	cls := ast.NewClassDef("Widget", "")
	cls.Methods = append(cls.Methods, ast.NewFunctionDef("run", nil, ast.NewBlock(nil)))
	mod := ast.NewModule("f.php", nil, []*ast.FunctionDef{fn}, []*ast.ClassDef{cls}, nil)
	db := codedb.NewMemDB(mod)
	en := env.New(db, "f.php")
	h := value.NewHeap()

	ip := New(Options{ExtractPaths: true}, nil)
	_, err := ip.RunModule(en, h, mod)
	if err != nil {
		t.Fatalf("unexpected error from the fake-root sweep: %v", err)
	}

	root := callgraph.FakeRoot()
	callees := ip.Graph.Callees(root)
	foundFn, foundMethod := false, false
	for _, c := range callees {
		if c == callgraph.Function("helper") {
			foundFn = true
		}
		if c == callgraph.Method("Widget", "run") {
			foundMethod = true
		}
	}
	if !foundFn {
		t.Fatalf("expected FakeRoot to reach Function:helper, got %v", callees)
	}
	if !foundMethod {
		t.Fatalf("expected FakeRoot to reach Method:Widget::run, got %v", callees)
	}
}
