package parser

import (
	"fmt"
	"testing"

	"github.com/dr8co/augo/ast"
	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/lexer"
)

func parseSource(t *testing.T, source string) *ast.Root {
	t.Helper()
	l := lexer.New(input.OpenString("test", source))
	p := New(l)
	root := p.ParseRoot()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	return root
}

func TestVarDefineStatements(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		hasInit bool
	}{
		{"var x = 5;", "x", true},
		{"var y;", "y", false},
		{"var foobar = y;", "foobar", true},
	}

	for _, tt := range tests {
		root := parseSource(t, tt.input)
		if len(root.Statements) != 1 {
			t.Fatalf("root.Statements does not contain 1 statement, got %d", len(root.Statements))
		}
		stmt, ok := root.Statements[0].(*ast.VarDefine)
		if !ok {
			t.Fatalf("statement is not *ast.VarDefine, got %T", root.Statements[0])
		}
		if stmt.Name.Name != tt.name {
			t.Errorf("stmt.Name.Name = %q, want %q", stmt.Name.Name, tt.name)
		}
		if (stmt.Value != nil) != tt.hasInit {
			t.Errorf("stmt.Value != nil = %v, want %v", stmt.Value != nil, tt.hasInit)
		}
	}
}

func TestReturnStatements(t *testing.T) {
	root := parseSource(t, "return 5; return; return add(1, 2);")
	if len(root.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(root.Statements))
	}
	for _, s := range root.Statements {
		ret, ok := s.(*ast.Return)
		if !ok {
			t.Fatalf("statement is not *ast.Return, got %T", s)
		}
		if ret.TokenLiteral() != "return" {
			t.Errorf("ret.TokenLiteral() = %q, want %q", ret.TokenLiteral(), "return")
		}
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-a * b", "((-a) * b)"},
		{"!-a", "(!(-a))"},
		{"a + b + c", "((a + b) + c)"},
		{"a + b - c", "((a + b) - c)"},
		{"a * b * c", "((a * b) * c)"},
		{"a * b / c", "((a * b) / c)"},
		{"a + b / c", "(a + (b / c))"},
		{"a + b * c + d / e - f", "(((a + (b * c)) + (d / e)) - f)"},
		{"5 > 4 == 3 < 4", "((5 > 4) == (3 < 4))"},
		{"5 < 4 != 3 > 4", "((5 < 4) != (3 > 4))"},
		{"3 + 4 * 5 == 3 * 1 + 4 * 5", "((3 + (4 * 5)) == ((3 * 1) + (4 * 5)))"},
		{"true and false or true", "((true and false) or true)"},
		{"(5 + 5) * 2", "((5 + 5) * 2)"},
		{"2 / (5 + 5)", "(2 / (5 + 5))"},
		{"-(5 + 5)", "(-(5 + 5))"},
		{"a + add(b * c) + d", "((a + add((b * c))) + d)"},
	}

	for _, tt := range tests {
		root := parseSource(t, tt.input+";")
		got := root.String()
		if got != tt.expected {
			t.Errorf("input %q: got %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIfExpression(t *testing.T) {
	root := parseSource(t, "if x < y { x } else { y }")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	ifExp, ok := stmt.Expression.(*ast.If)
	if !ok {
		t.Fatalf("expression is not *ast.If, got %T", stmt.Expression)
	}
	if len(ifExp.Consequence.Statements) != 1 {
		t.Fatalf("consequence has %d statements, want 1", len(ifExp.Consequence.Statements))
	}
	if ifExp.Alternative == nil {
		t.Fatal("expected an alternative block")
	}
}

func TestElseIfChaining(t *testing.T) {
	root := parseSource(t, "if a { 1 } else if b { 2 } else { 3 }")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	ifExp := stmt.Expression.(*ast.If)
	if len(ifExp.Alternative.Statements) != 1 {
		t.Fatalf("expected the else-if to be wrapped in a single-statement block")
	}
	if _, ok := ifExp.Alternative.Statements[0].(*ast.ExpressionStatement); !ok {
		t.Fatalf("expected an expression statement wrapping the nested if, got %T", ifExp.Alternative.Statements[0])
	}
}

func TestFuncDefParsing(t *testing.T) {
	root := parseSource(t, "func add(x, y) { return x + y; }")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	fn, ok := stmt.Expression.(*ast.FuncDef)
	if !ok {
		t.Fatalf("expression is not *ast.FuncDef, got %T", stmt.Expression)
	}
	if fn.Name != "add" {
		t.Errorf("fn.Name = %q, want %q", fn.Name, "add")
	}
	if len(fn.Params.Params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(fn.Params.Params))
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body.Statements))
	}
}

func TestFuncCallArguments(t *testing.T) {
	root := parseSource(t, "add(1, 2 * 3, 4 + 5);")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	call, ok := stmt.Expression.(*ast.FuncCall)
	if !ok {
		t.Fatalf("expression is not *ast.FuncCall, got %T", stmt.Expression)
	}
	if !call.Named {
		t.Error("expected call.Named to be true for a bare identifier callee")
	}
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Arguments))
	}
}

func TestArrayLiteral(t *testing.T) {
	root := parseSource(t, "[1, 2 * 2, 3 + 3]")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	arr, ok := stmt.Expression.(*ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expression is not *ast.ArrayLiteral, got %T", stmt.Expression)
	}
	if len(arr.Elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(arr.Elements))
	}
}

func TestMapLiteral(t *testing.T) {
	root := parseSource(t, `{"one": 1, "two": 2}`)
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	m, ok := stmt.Expression.(*ast.MapLiteral)
	if !ok {
		t.Fatalf("expression is not *ast.MapLiteral, got %T", stmt.Expression)
	}
	if len(m.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(m.Pairs))
	}
}

func TestElementIndex(t *testing.T) {
	root := parseSource(t, "arr[1 + 1]")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	idx, ok := stmt.Expression.(*ast.ElementIndex)
	if !ok {
		t.Fatalf("expression is not *ast.ElementIndex, got %T", stmt.Expression)
	}
	if idx.Left.(*ast.Variable).Name != "arr" {
		t.Errorf("idx.Left = %q, want %q", idx.Left.String(), "arr")
	}
}

func TestRangeVsFieldAccess(t *testing.T) {
	root := parseSource(t, "for x in 1:5 { } obj.field;")
	if len(root.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(root.Statements))
	}
	forStmt, ok := root.Statements[0].(*ast.For)
	if !ok {
		t.Fatalf("first statement is not *ast.For, got %T", root.Statements[0])
	}
	if _, ok := forStmt.Iterable.(*ast.Range); !ok {
		t.Errorf("for-loop iterable is not *ast.Range, got %T", forStmt.Iterable)
	}
	fa := root.Statements[1].(*ast.ExpressionStatement).Expression
	if _, ok := fa.(*ast.FieldAccess); !ok {
		t.Errorf("second expression is not *ast.FieldAccess, got %T", fa)
	}
}

func TestForLoopDiscardVariable(t *testing.T) {
	root := parseSource(t, "for _ in 1:3 { }")
	forStmt, ok := root.Statements[0].(*ast.For)
	if !ok {
		t.Fatalf("statement is not *ast.For, got %T", root.Statements[0])
	}
	if forStmt.Iter != nil {
		t.Errorf("expected Iter to be nil for a discarded loop variable, got %v", forStmt.Iter)
	}
}

func TestForLoopNamedVariable(t *testing.T) {
	root := parseSource(t, "for x in 1:3 { }")
	forStmt := root.Statements[0].(*ast.For)
	if forStmt.Iter == nil || forStmt.Iter.Name != "x" {
		t.Fatalf("expected Iter to be %q, got %v", "x", forStmt.Iter)
	}
}

func TestForLoopOverCollectionHasNoRange(t *testing.T) {
	root := parseSource(t, "for x in arr { }")
	forStmt := root.Statements[0].(*ast.For)
	if _, ok := forStmt.Iterable.(*ast.Range); ok {
		t.Error("expected a plain collection iterable, not an *ast.Range")
	}
}

func TestCompoundAssignment(t *testing.T) {
	root := parseSource(t, "x += 1;")
	stmt := root.Statements[0].(*ast.ExpressionStatement)
	bin, ok := stmt.Expression.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("expression is not *ast.BinaryOp, got %T", stmt.Expression)
	}
	if fmt.Sprintf("%v", bin.Operator) == "" {
		t.Fatal("expected a non-zero operator kind")
	}
}

func TestImportForms(t *testing.T) {
	root := parseSource(t, `import "other.aug"; import mathlib;`)
	if _, ok := root.Statements[0].(*ast.ImportScript); !ok {
		t.Errorf("first statement is not *ast.ImportScript, got %T", root.Statements[0])
	}
	if _, ok := root.Statements[1].(*ast.ImportLib); !ok {
		t.Errorf("second statement is not *ast.ImportLib, got %T", root.Statements[1])
	}
}

func TestWhileLoop(t *testing.T) {
	root := parseSource(t, "while x < 10 { x += 1; }")
	w, ok := root.Statements[0].(*ast.While)
	if !ok {
		t.Fatalf("statement is not *ast.While, got %T", root.Statements[0])
	}
	if len(w.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(w.Body.Statements))
	}
}
