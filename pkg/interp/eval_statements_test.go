package interp

import (
	"math/big"
	"testing"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/value"
)

func TestEvalIfRunsBothArmsIntoSameHeap(t *testing.T) {
	ip, en, h := newTestEnv()
	ifStmt := ast.NewIf(
		ast.NewBoolLiteral(true),
		ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$x"), ast.NewIntLiteral(big.NewInt(1)))}),
		ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$x"), ast.NewIntLiteral(big.NewInt(2)))}),
	)
	h, err := ip.evalStmt(en, h, ifStmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, got, err := ip.expr(en, h, ast.NewIdentifier("$x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.NewAbstractType(value.TypeInt)) {
		t.Fatalf("expected both branches' writes to $x to unify to AbstractType(Int), got %v", got)
	}
}

func TestEvalWhileRunsBodyExactlyOnce(t *testing.T) {
	ip, en, h := newTestEnv()
	whileStmt := ast.NewWhile(
		ast.NewBoolLiteral(false),
		ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$count"), ast.NewIntLiteral(big.NewInt(1)))}),
	)
	h, err := ip.evalStmt(en, h, whileStmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, got, err := ip.expr(en, h, ast.NewIdentifier("$count"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.NewInt(1)) {
		t.Fatalf("expected a while loop's body to still run once despite a false condition, got %v", got)
	}
}

func TestEvalReturnBindsMagicReturn(t *testing.T) {
	ip, en, h := newTestEnv()
	ret := ast.NewReturn(ast.NewIntLiteral(big.NewInt(9)))
	h, err := ip.evalStmt(en, h, ret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ptr := en.Get(h, env.MagicReturn)
	got := ip.readVar(h, ptr)
	if !value.Equal(got, value.NewInt(9)) {
		t.Fatalf("expected *return* bound to 9, got %v", got)
	}
}

func TestEvalReturnDoesNotHaltSubsequentStatements(t *testing.T) {
	ip, en, h := newTestEnv()
	block := ast.NewBlock([]ast.Statement{
		ast.NewReturn(ast.NewIntLiteral(big.NewInt(1))),
		ast.NewAssignmentExpression("", ast.NewIdentifier("$after"), ast.NewIntLiteral(big.NewInt(2))),
	})
	h, err := ip.evalStmt(en, h, block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, got, err := ip.expr(en, h, ast.NewIdentifier("$after"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.NewInt(2)) {
		t.Fatalf("a return statement must not prevent later statements from running, got %v", got)
	}
}

func TestEvalGlobalAliasesLocalToGlobalCell(t *testing.T) {
	ip, en, h := newTestEnv()
	_, gptr := en.GetGlobal(h, "$counter")
	h, _ = ip.assignVar(h, gptr, value.NewInt(100))

	// Simulate being inside a function scope whose Vars doesn't yet know $counter.
	en.Vars = make(env.Namespace)
	global := ast.NewGlobal([]string{"$counter"})
	h, err := ip.evalStmt(en, h, global)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, got, err := ip.expr(en, h, ast.NewIdentifier("$counter"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.NewInt(100)) {
		t.Fatalf("expected global $counter visible after `global $counter;`, got %v", got)
	}
}

func TestEvalStaticSeedsOnceAndPersists(t *testing.T) {
	ip, en, h := newTestEnv()
	en.CFun = "tally"
	stmt := ast.NewStatic("$count", ast.NewIntLiteral(big.NewInt(0)))

	h, err := ip.evalStmt(en, h, stmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, _, err = ip.expr(en, h, ast.NewAssignmentExpression("", ast.NewIdentifier("$count"), ast.NewIntLiteral(big.NewInt(1))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-entering the same function (fresh Vars) and re-running `static $count = 0;`
	// must not reseed — the key is shared via globals under "tally**$count".
	en.Vars = make(env.Namespace)
	h, err = ip.evalStmt(en, h, stmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, got, err := ip.expr(en, h, ast.NewIdentifier("$count"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Equal(got, value.NewInt(0)) {
		t.Fatalf("static variable should not have reseeded to its initial value, got %v", got)
	}
}

func TestEvalTryRunsBodyCatchesAndFinally(t *testing.T) {
	ip, en, h := newTestEnv()
	tryStmt := ast.NewTry(
		ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$a"), ast.NewIntLiteral(big.NewInt(1)))}),
		[]*ast.CatchClause{{
			ExceptionType: "Exception",
			Binding:       "$e",
			Body:          ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$b"), ast.NewIntLiteral(big.NewInt(2)))}),
		}},
		ast.NewBlock([]ast.Statement{ast.NewAssignmentExpression("", ast.NewIdentifier("$c"), ast.NewIntLiteral(big.NewInt(3)))}),
	)
	h, err := ip.evalStmt(en, h, tryStmt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for name, want := range map[string]int64{"$a": 1, "$b": 2, "$c": 3} {
		_, got, err := ip.expr(en, h, ast.NewIdentifier(name))
		if err != nil {
			t.Fatalf("unexpected error reading %s: %v", name, err)
		}
		if !value.Equal(got, value.NewInt(want)) {
			t.Fatalf("expected %s = %d (body, catch, and finally should all run), got %v", name, want, got)
		}
	}
}
