package vm

import (
	"fmt"
	"math"
	"testing"

	"github.com/dr8co/augo/code"
	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/ir"
	"github.com/dr8co/augo/lexer"
	"github.com/dr8co/augo/parser"
	"github.com/dr8co/augo/value"
)

// fakeExt is a minimal vm.Extensions used to exercise OpCallExt/OpImportLib
// without pulling in the extension package (which itself depends on vm).
type fakeExt struct {
	calls   []string
	loaded  []string
	handler func(name string, args []value.Value) (value.Value, error)
}

func (f *fakeExt) Call(name string, args []value.Value) (value.Value, error) {
	f.calls = append(f.calls, name)
	if f.handler != nil {
		return f.handler(name, args)
	}
	return value.NewNone(), nil
}

func (f *fakeExt) Load(name string) error {
	f.loaded = append(f.loaded, name)
	return nil
}

type fakeLoader struct{ imported []string }

func (f *fakeLoader) Import(path string) error {
	f.imported = append(f.imported, path)
	return nil
}

func run(t *testing.T, source string, ext Extensions, loader ScriptLoader) (*VM, error) {
	t.Helper()
	l := lexer.New(input.OpenString("test", source))
	p := parser.New(l)
	root := p.ParseRoot()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	gen := ir.New()
	bc, err := gen.Generate(root)
	if err != nil {
		t.Fatalf("ir error: %v", err)
	}
	machine := New(bc, nil, ext, loader)
	err = machine.Run()
	return machine, err
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1 + 2;", 3},
		{"2 * (3 + 4);", 14},
		{"10 - 2 * 3;", 4},
		{"7 % 3;", 1},
	}
	for _, tt := range tests {
		m, err := run(t, tt.input, &fakeExt{}, &fakeLoader{})
		if err != nil {
			t.Fatalf("input %q: run error: %v", tt.input, err)
		}
		got := m.StackTop()
		if got.Type() != value.Int || got.Int() != tt.want {
			t.Errorf("input %q: got %v, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFloatDivisionByZeroFaults(t *testing.T) {
	_, err := run(t, "1.0 / 0.0;", &fakeExt{}, &fakeLoader{})
	if err == nil {
		t.Fatal("expected a division-by-zero fault")
	}
}

func TestStringConcat(t *testing.T) {
	m, err := run(t, `"foo" + "bar";`, &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Type() != value.String || got.String() != "foobar" {
		t.Errorf("got %v, want %q", got, "foobar")
	}
}

func TestGlobalVarRoundTrip(t *testing.T) {
	m, err := run(t, "var x = 10; x = x + 5; x;", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 15 {
		t.Errorf("got %v, want 15", got)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	m, err := run(t, "func add(a, b) { return a + b; } add(3, 4);", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 7 {
		t.Errorf("got %v, want 7", got)
	}
}

func TestCallThroughVariable(t *testing.T) {
	m, err := run(t, "func add(a, b) { return a + b; } var f = add; f(3, 4);", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 7 {
		t.Errorf("got %v, want 7", got)
	}
}

func TestUnnamedCall(t *testing.T) {
	m, err := run(t, "(func(x) { return x * 2; })(21);", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	m, err := run(t, "var i = 0; var sum = 0; while i < 5 { sum = sum + i; i = i + 1; } sum;", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 10 {
		t.Errorf("got %v, want 10", got)
	}
}

func TestForLoopOverRange(t *testing.T) {
	m, err := run(t, "var sum = 0; for x in 0:5 { sum = sum + x; } sum;", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 10 {
		t.Errorf("got %v, want 10", got)
	}
}

func TestBreakAndContinue(t *testing.T) {
	m, err := run(t, `
var i = 0;
var sum = 0;
while i < 10 {
	i = i + 1;
	if i == 3 { continue; }
	if i == 6 { break; }
	sum = sum + i;
}
sum;`, &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	// 1 + 2 + 4 + 5 = 12 (3 skipped via continue, loop stops before adding 6)
	got := m.StackTop()
	if got.Int() != 12 {
		t.Errorf("got %v, want 12", got)
	}
}

func TestArrayAndIndex(t *testing.T) {
	m, err := run(t, "var a = [1, 2, 3]; a[1];", &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 2 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestMapAndIndex(t *testing.T) {
	m, err := run(t, `var m = {"a": 1, "b": 2}; m["b"];`, &fakeExt{}, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 2 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestHostExtensionCall(t *testing.T) {
	ext := &fakeExt{handler: func(name string, args []value.Value) (value.Value, error) {
		if name != "greet" {
			return value.Value{}, fmt.Errorf("unexpected call %q", name)
		}
		return value.NewString("hi " + args[0].String()), nil
	}}
	m, err := run(t, `greet("world");`, ext, &fakeLoader{})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(ext.calls) != 1 || ext.calls[0] != "greet" {
		t.Fatalf("ext.calls = %v", ext.calls)
	}
	got := m.StackTop()
	if got.String() != "hi world" {
		t.Errorf("got %v, want %q", got, "hi world")
	}
}

func TestImportLibAndScript(t *testing.T) {
	ext := &fakeExt{}
	loader := &fakeLoader{}
	_, err := run(t, `import mathlib; import "other.aug";`, ext, loader)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(ext.loaded) != 1 || ext.loaded[0] != "mathlib" {
		t.Errorf("ext.loaded = %v", ext.loaded)
	}
	if len(loader.imported) != 1 || loader.imported[0] != "other.aug" {
		t.Errorf("loader.imported = %v", loader.imported)
	}
}

// TestMathUnaryOpcodes builds bytecode directly with code.Make, since the
// ir package routes a call such as abs(x) or sqrt(x) through OpCallExt
// rather than emitting OpAbs/OpSqrt/etc. — these opcodes exist for embedders
// that construct bytecode without going through the parser/ir pipeline.
func TestMathUnaryOpcodes(t *testing.T) {
	tests := []struct {
		op   code.Opcode
		in   float64
		want float64
	}{
		{code.OpAbs, -4, 4},
		{code.OpSqrt, 9, 3},
		{code.OpSin, 0, 0},
		{code.OpCos, 0, 1},
	}
	for _, tt := range tests {
		bc := &code.Bytecode{
			Constants: []code.Constant{{Kind: code.ConstFloat, F: tt.in}},
		}
		bc.Instructions = append(bc.Instructions, code.Make(code.OpPushConst, 0)...)
		bc.Instructions = append(bc.Instructions, code.Make(tt.op)...)
		bc.Instructions = append(bc.Instructions, code.Make(code.OpHalt)...)

		m := New(bc, nil, &fakeExt{}, &fakeLoader{})
		if err := m.Run(); err != nil {
			t.Fatalf("op %v: run error: %v", tt.op, err)
		}
		got := m.StackTop().Float()
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("op %v(%v) = %v, want %v", tt.op, tt.in, got, tt.want)
		}
	}
}

func TestCallEntryDirectInvocation(t *testing.T) {
	l := lexer.New(input.OpenString("test", "func double(x) { return x * 2; }"))
	p := parser.New(l)
	root := p.ParseRoot()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	gen := ir.New()
	bc, err := gen.Generate(root)
	if err != nil {
		t.Fatalf("ir error: %v", err)
	}

	m := New(bc, nil, &fakeExt{}, &fakeLoader{})
	if err := m.CallEntry(0, []value.Value{value.NewInt(21)}); err != nil {
		t.Fatalf("CallEntry error: %v", err)
	}
	got := m.StackTop()
	if got.Int() != 42 {
		t.Errorf("got %v, want 42", got)
	}
}
