package codedb

import (
	"math/big"
	"testing"

	"github.com/corewall/hackscan/pkg/ast"
)

func TestMemDBIndexesDeclarations(t *testing.T) {
	fn := ast.NewFunctionDef("greet", nil, ast.NewBlock(nil))
	cls := ast.NewClassDef("Widget", "")
	con := ast.NewConstantDef("MAX", ast.NewIntLiteral(big.NewInt(10)))
	mod := ast.NewModule("f.php", nil, []*ast.FunctionDef{fn}, []*ast.ClassDef{cls}, []*ast.ConstantDef{con})

	db := NewMemDB(mod)

	if got, ok := db.Function("greet"); !ok || got != fn {
		t.Fatalf("Function(greet) = %v, %v; want %v, true", got, ok, fn)
	}
	if _, ok := db.Function("missing"); ok {
		t.Fatalf("Function(missing) should report a miss, not an error")
	}
	if got, ok := db.Class("Widget"); !ok || got != cls {
		t.Fatalf("Class(Widget) = %v, %v; want %v, true", got, ok, cls)
	}
	if got, ok := db.Constant("MAX"); !ok || got != con.Value {
		t.Fatalf("Constant(MAX) = %v, %v; want %v, true", got, ok, con.Value)
	}
	if len(db.Functions()) != 1 || len(db.Classes()) != 1 {
		t.Fatalf("expected one indexed function and one indexed class")
	}
}

func TestMemDBLaterModuleShadowsEarlier(t *testing.T) {
	fnA := ast.NewFunctionDef("greet", nil, ast.NewBlock(nil))
	fnB := ast.NewFunctionDef("greet", nil, ast.NewBlock([]ast.Statement{ast.NewReturn(nil)}))
	modA := ast.NewModule("a.php", nil, []*ast.FunctionDef{fnA}, nil, nil)
	modB := ast.NewModule("b.php", nil, []*ast.FunctionDef{fnB}, nil, nil)

	db := NewMemDB(modA, modB)

	got, _ := db.Function("greet")
	if got != fnB {
		t.Fatalf("expected the later module's greet to win")
	}
	if len(db.Functions()) != 1 {
		t.Fatalf("a name collision should not produce a second Functions() entry, got %d", len(db.Functions()))
	}
}

func TestMemDBAddNilModuleIsNoOp(t *testing.T) {
	db := NewMemDB()
	db.Add(nil)
	if len(db.Functions()) != 0 || len(db.Classes()) != 0 {
		t.Fatalf("Add(nil) should not add anything")
	}
}

func TestLoadModuleDecodesFixture(t *testing.T) {
	yamlDoc := []byte(`
type: Module
body: []
functions:
  - type: FunctionDef
    name: add
    parameters:
      - name: $a
      - name: $b
    body:
      statements:
        - type: Return
          argument:
            type: BinaryExpression
            operator: "+"
            left:
              type: Identifier
              name: $a
            right:
              type: Identifier
              name: $b
classes: []
constantDefs:
  - type: ConstantDef
    name: MAX
    value:
      type: IntLiteral
      value: 10
`)

	mod, err := LoadModule("fixture.yaml", yamlDoc)
	if err != nil {
		t.Fatalf("LoadModule returned an error: %v", err)
	}
	if mod.Path != "fixture.yaml" {
		t.Fatalf("expected Path to be set to the load path, got %q", mod.Path)
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("expected one decoded function, got %d", len(mod.Functions))
	}
	fn := mod.Functions[0]
	if fn.Name != "add" || len(fn.Parameters) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected one statement in add's body")
	}
	ret, ok := fn.Body.Statements[0].(*ast.Return)
	if !ok {
		t.Fatalf("expected a Return statement, got %T", fn.Body.Statements[0])
	}
	bin, ok := ret.Argument.(*ast.BinaryExpression)
	if !ok {
		t.Fatalf("expected a BinaryExpression return argument, got %T", ret.Argument)
	}
	if bin.Operator != "+" {
		t.Fatalf("expected '+' operator, got %q", bin.Operator)
	}
	if len(mod.Constants) != 1 || mod.Constants[0].Name != "MAX" {
		t.Fatalf("expected one MAX constant, got %+v", mod.Constants)
	}
}

func TestLoadModuleRejectsNonModuleTop(t *testing.T) {
	yamlDoc := []byte(`
type: Identifier
name: $x
`)
	if _, err := LoadModule("bad.yaml", yamlDoc); err == nil {
		t.Fatalf("expected an error when the top-level node isn't a Module")
	}
}

func TestLoadModuleRejectsUnknownNodeType(t *testing.T) {
	yamlDoc := []byte(`
type: Module
body:
  - type: Frobnicate
classes: []
functions: []
constantDefs: []
`)
	if _, err := LoadModule("bad.yaml", yamlDoc); err == nil {
		t.Fatalf("expected an error for an unknown node type")
	}
}
