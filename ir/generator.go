package ir

import (
	"fmt"

	"github.com/dr8co/augo/ast"
	"github.com/dr8co/augo/code"
	"github.com/dr8co/augo/token"
)

// funcScope is the per-function instruction builder the generator pushes
// when it starts walking a FuncDef body, and pops once the body is done —
// the same enter/leave-scope discipline the teacher's compiler uses for
// nested compilation units, generalized here to non-closing functions only.
type funcScope struct {
	name         string
	instructions code.Instructions
	symbols      *SymbolTable
	markers      map[int]string
	numParams    int
}

type loopRecord struct {
	breakJumps    []int
	continueJumps []int
}

// Generator walks an AST and produces a code.Bytecode. Use New, then Generate.
type Generator struct {
	global    *SymbolTable
	constants []code.Constant
	functions []code.Function
	funcIndex map[string]int

	scopes []*funcScope
	loops  []*loopRecord

	errors []string
}

// New creates a Generator with an empty global scope.
func New() *Generator {
	return &Generator{
		global:    NewSymbolTable(),
		funcIndex: make(map[string]int),
	}
}

// Errors returns the diagnostics accumulated during Generate.
func (g *Generator) Errors() []string { return g.errors }

func (g *Generator) errorf(format string, args ...any) {
	g.errors = append(g.errors, fmt.Sprintf(format, args...))
}

// Generate lowers root into a code.Bytecode. It runs a prepass over root's
// top-level statements to register every global variable and function name
// ahead of the main pass, so forward references (mutual recursion, a
// function called before its "var f = func..." line) resolve correctly —
// mirroring aug_ir_get_symbol_relative's forward-registration behavior in
// original_source/aug.h.
func (g *Generator) Generate(root *ast.Root) (*code.Bytecode, error) {
	g.prepass(root.Statements)

	main := &funcScope{name: "<script>", symbols: g.global, markers: make(map[int]string)}
	g.scopes = append(g.scopes, main)

	for _, stmt := range root.Statements {
		g.genStatement(stmt)
	}
	g.emit(main, code.OpHalt)

	if len(g.errors) > 0 {
		return nil, fmt.Errorf("ir: %d error(s); first: %s", len(g.errors), g.errors[0])
	}

	return &code.Bytecode{
		Instructions: main.instructions,
		Constants:    g.constants,
		Functions:    g.functions,
		Markers:      main.markers,
	}, nil
}

// prepass registers every top-level "var" and named "func" so the main pass
// can resolve forward references.
func (g *Generator) prepass(stmts []ast.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarDefine:
			g.global.Define(s.Name.Name)
		case *ast.ExpressionStatement:
			if fd, ok := s.Expression.(*ast.FuncDef); ok && fd.Name != "" {
				g.registerFunction(fd)
			}
		}
	}
}

func (g *Generator) registerFunction(fd *ast.FuncDef) int {
	if idx, ok := g.funcIndex[fd.Name]; ok {
		return idx
	}
	idx := len(g.functions)
	g.functions = append(g.functions, code.Function{Name: fd.Name})
	g.funcIndex[fd.Name] = idx
	g.global.Define(fd.Name)
	return idx
}

func (g *Generator) current() *funcScope { return g.scopes[len(g.scopes)-1] }

func (g *Generator) emit(scope *funcScope, op code.Opcode, operands ...int) int {
	pos := len(scope.instructions)
	scope.instructions = append(scope.instructions, code.Make(op, operands...)...)
	return pos
}

func (g *Generator) mark(scope *funcScope, pos int, label string) {
	scope.markers[pos] = label
}

func (g *Generator) addConstant(c code.Constant) int {
	g.constants = append(g.constants, c)
	return len(g.constants) - 1
}

func (g *Generator) genStatement(stmt ast.Statement) {
	scope := g.current()
	switch s := stmt.(type) {
	case *ast.VarDefine:
		sym, ok := scope.symbols.Resolve(s.Name.Name)
		if !ok {
			sym = scope.symbols.Define(s.Name.Name)
		}
		if s.Value != nil {
			g.genExpression(s.Value)
		} else {
			g.emit(scope, code.OpPushNone)
		}
		g.emitStore(scope, sym)

	case *ast.ExpressionStatement:
		if s.Expression == nil {
			return
		}
		if fd, ok := s.Expression.(*ast.FuncDef); ok && fd.Name != "" {
			g.genNamedFuncDef(fd)
			return
		}
		// an if statement leaves no value on the stack, so there is
		// nothing to pop.
		if ifExpr, ok := s.Expression.(*ast.If); ok {
			g.genIf(ifExpr)
			return
		}
		g.genExpression(s.Expression)
		g.emit(scope, code.OpPop)

	case *ast.Block:
		for _, inner := range s.Statements {
			g.genStatement(inner)
		}

	case *ast.Return:
		if s.Value != nil {
			g.genExpression(s.Value)
		} else {
			g.emit(scope, code.OpPushNone)
		}
		g.emit(scope, code.OpReturn, scope.symbols.NumDefinitions())

	case *ast.While:
		g.genWhile(s)

	case *ast.For:
		g.genFor(s)

	case *ast.Break:
		if len(g.loops) == 0 {
			g.errorf("break outside of a loop")
			return
		}
		pos := g.emit(scope, code.OpJump, 0)
		top := g.loops[len(g.loops)-1]
		top.breakJumps = append(top.breakJumps, pos)

	case *ast.Continue:
		if len(g.loops) == 0 {
			g.errorf("continue outside of a loop")
			return
		}
		pos := g.emit(scope, code.OpJump, 0)
		top := g.loops[len(g.loops)-1]
		top.continueJumps = append(top.continueJumps, pos)

	case *ast.ImportLib:
		idx := g.addConstant(code.Constant{Kind: code.ConstString, S: s.Name})
		g.emit(scope, code.OpImportLib, idx)

	case *ast.ImportScript:
		idx := g.addConstant(code.Constant{Kind: code.ConstString, S: s.Path})
		g.emit(scope, code.OpImportScript, idx)

	default:
		g.errorf("ir: unsupported statement %T", stmt)
	}
}

func (g *Generator) emitStore(scope *funcScope, sym Symbol) {
	switch sym.Scope {
	case GlobalScope:
		g.emit(scope, code.OpSetGlobal, sym.Index)
	case LocalScope:
		g.emit(scope, code.OpSetLocal, sym.Index)
	}
}

func (g *Generator) emitLoad(scope *funcScope, sym Symbol) {
	switch sym.Scope {
	case GlobalScope:
		g.emit(scope, code.OpGetGlobal, sym.Index)
	case LocalScope:
		g.emit(scope, code.OpGetLocal, sym.Index)
	}
}

func (g *Generator) genWhile(s *ast.While) {
	scope := g.current()
	g.loops = append(g.loops, &loopRecord{})

	condPos := len(scope.instructions)
	g.genExpression(s.Condition)
	jumpEnd := g.emit(scope, code.OpJumpNotTruthy, 0)

	g.genStatement(s.Body)
	g.emit(scope, code.OpJump, condPos)

	endPos := len(scope.instructions)
	g.patchJump(scope, jumpEnd, endPos)

	loop := g.loops[len(g.loops)-1]
	for _, p := range loop.breakJumps {
		g.patchJump(scope, p, endPos)
	}
	for _, p := range loop.continueJumps {
		g.patchJump(scope, p, condPos)
	}
	g.loops = g.loops[:len(g.loops)-1]
}

// genFor lowers "for <var> in <iterable> { body }" using OpIterNew/OpIterNext:
// the iterator sits on the stack for the duration of the loop.
func (g *Generator) genFor(s *ast.For) {
	scope := g.current()
	g.loops = append(g.loops, &loopRecord{})

	g.genExpression(s.Iterable)
	g.emit(scope, code.OpIterNew)

	var iterSym Symbol
	if scope.symbols.Outer == nil {
		iterSym = scope.symbols.Define("$iter")
	} else {
		iterSym = scope.symbols.Define("$iter")
	}
	g.emitStore(scope, iterSym)

	condPos := len(scope.instructions)
	g.emitLoad(scope, iterSym)
	g.emit(scope, code.OpIterNext)
	// Stack after OpIterNext: [iter, element, hasNext]; store hasNext into
	// a scratch slot, re-store iter, leave element for the loop variable.
	hasNextSym := scope.symbols.Define("$hasNext")
	g.emitStore(scope, hasNextSym)

	var elemSym Symbol
	if s.Iter != nil {
		elemSym, _ = scope.symbols.Resolve(s.Iter.Name)
		if elemSym.Name == "" {
			elemSym = scope.symbols.Define(s.Iter.Name)
		}
	} else {
		elemSym = scope.symbols.Define("$discard")
	}
	g.emitStore(scope, elemSym)
	g.emitStore(scope, iterSym)

	g.emitLoad(scope, hasNextSym)
	jumpEnd := g.emit(scope, code.OpJumpNotTruthy, 0)

	g.genStatement(s.Body)
	g.emit(scope, code.OpJump, condPos)

	endPos := len(scope.instructions)
	g.patchJump(scope, jumpEnd, endPos)

	loop := g.loops[len(g.loops)-1]
	for _, p := range loop.breakJumps {
		g.patchJump(scope, p, endPos)
	}
	for _, p := range loop.continueJumps {
		g.patchJump(scope, p, condPos)
	}
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *Generator) patchJump(scope *funcScope, pos, target int) {
	instr := code.Make(code.Opcode(scope.instructions[pos]), target)
	copy(scope.instructions[pos:], instr)
}

func (g *Generator) genExpression(expr ast.Expression) {
	scope := g.current()
	switch e := expr.(type) {
	case *ast.Literal:
		g.genLiteral(e)

	case *ast.Variable:
		// A local parameter or variable shadows a same-named top-level
		// function (spec.md §4.4).
		sym, ok := scope.symbols.Resolve(e.Name)
		if ok && sym.Scope == LocalScope {
			g.emitLoad(scope, sym)
			return
		}
		if idx, fnOk := g.funcIndex[e.Name]; fnOk {
			g.emit(scope, code.OpPushFunc, idx)
			return
		}
		if !ok {
			g.errorf("undefined variable %q", e.Name)
			return
		}
		g.emitLoad(scope, sym)

	case *ast.Discard:
		g.emit(scope, code.OpPushNone)

	case *ast.UnaryOp:
		g.genExpression(e.Right)
		switch e.Operator {
		case token.SUB:
			g.emit(scope, code.OpNeg)
		case token.NOT:
			g.emit(scope, code.OpNot)
		}

	case *ast.BinaryOp:
		g.genBinaryOp(e)

	case *ast.If:
		g.genIf(e)

	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			g.genExpression(el)
		}
		g.emit(scope, code.OpArray, len(e.Elements))

	case *ast.MapLiteral:
		for _, pair := range e.Pairs {
			g.genExpression(pair.Key)
			g.genExpression(pair.Value)
		}
		g.emit(scope, code.OpMap, len(e.Pairs))

	case *ast.Range:
		g.genExpression(e.Lower)
		g.genExpression(e.Upper)
		g.emit(scope, code.OpRange)

	case *ast.ElementIndex:
		g.genExpression(e.Left)
		g.genExpression(e.Index)
		g.emit(scope, code.OpIndexGet)

	case *ast.FieldAccess:
		g.genExpression(e.Left)
		idx := g.addConstant(code.Constant{Kind: code.ConstString, S: e.Field})
		g.emit(scope, code.OpFieldGet, idx)

	case *ast.FuncDef:
		idx := g.genAnonFuncDef(e)
		g.emit(scope, code.OpPushFunc, idx)

	case *ast.FuncCall:
		g.genFuncCall(e)

	default:
		g.errorf("ir: unsupported expression %T", expr)
	}
}

func (g *Generator) genLiteral(l *ast.Literal) {
	scope := g.current()
	switch l.Kind {
	case ast.NoneLiteral:
		g.emit(scope, code.OpPushNone)
	case ast.BoolLiteral:
		if l.BoolValue {
			g.emit(scope, code.OpPushTrue)
		} else {
			g.emit(scope, code.OpPushFalse)
		}
	case ast.IntLiteral:
		idx := g.addConstant(code.Constant{Kind: code.ConstInt, I: l.IntValue})
		g.emit(scope, code.OpPushConst, idx)
	case ast.FloatLiteral:
		idx := g.addConstant(code.Constant{Kind: code.ConstFloat, F: l.FloatValue})
		g.emit(scope, code.OpPushConst, idx)
	case ast.CharLiteral:
		idx := g.addConstant(code.Constant{Kind: code.ConstChar, C: l.CharValue})
		g.emit(scope, code.OpPushConst, idx)
	case ast.StringLiteral:
		idx := g.addConstant(code.Constant{Kind: code.ConstString, S: l.StringValue})
		g.emit(scope, code.OpPushConst, idx)
	}
}

func (g *Generator) genBinaryOp(e *ast.BinaryOp) {
	scope := g.current()

	if token.IsAssignOp(e.Operator) {
		g.genAssign(e)
		return
	}

	if e.Operator == token.AND {
		g.genExpression(e.Left)
		jmp := g.emit(scope, code.OpJumpIfFalseNoPop, 0)
		g.emit(scope, code.OpPop)
		g.genExpression(e.Right)
		g.patchJump(scope, jmp, len(scope.instructions))
		return
	}
	if e.Operator == token.OR {
		g.genExpression(e.Left)
		jmp := g.emit(scope, code.OpJumpIfTrueNoPop, 0)
		g.emit(scope, code.OpPop)
		g.genExpression(e.Right)
		g.patchJump(scope, jmp, len(scope.instructions))
		return
	}

	g.genExpression(e.Left)
	g.genExpression(e.Right)
	switch e.Operator {
	case token.ADD:
		g.emit(scope, code.OpAdd)
	case token.SUB:
		g.emit(scope, code.OpSub)
	case token.MUL:
		g.emit(scope, code.OpMul)
	case token.DIV:
		g.emit(scope, code.OpDiv)
	case token.MOD:
		g.emit(scope, code.OpMod)
	case token.POW:
		g.emit(scope, code.OpPow)
	case token.EQ:
		g.emit(scope, code.OpEq)
	case token.NOT_EQ:
		g.emit(scope, code.OpNotEq)
	case token.APPROX_EQ:
		g.emit(scope, code.OpApproxEq)
	case token.LT:
		g.emit(scope, code.OpLt)
	case token.GT:
		g.emit(scope, code.OpGt)
	case token.LT_EQ:
		g.emit(scope, code.OpLtEq)
	case token.GT_EQ:
		g.emit(scope, code.OpGtEq)
	default:
		g.errorf("ir: unsupported binary operator %s", e.Operator)
	}
}

// genAssign lowers "=" and the compound-assignment operators against a
// variable, an index target, or a field target.
func (g *Generator) genAssign(e *ast.BinaryOp) {
	scope := g.current()
	binOp := token.BinaryOpForAssign(e.Operator)

	switch target := e.Left.(type) {
	case *ast.Variable:
		sym, ok := scope.symbols.Resolve(target.Name)
		if !ok {
			sym = scope.symbols.Define(target.Name)
		}
		if binOp != token.ILLEGAL {
			g.emitLoad(scope, sym)
			g.genExpression(e.Right)
			g.emitBinary(binOp)
		} else {
			g.genExpression(e.Right)
		}
		g.emitStore(scope, sym)
		g.emitLoad(scope, sym)

	case *ast.ElementIndex:
		g.genExpression(target.Left)
		g.genExpression(target.Index)
		if binOp != token.ILLEGAL {
			g.emit(scope, code.OpIndexGet)
			g.genExpression(e.Right)
			g.emitBinary(binOp)
		} else {
			g.genExpression(e.Right)
		}
		g.emit(scope, code.OpIndexSet)

	case *ast.FieldAccess:
		g.genExpression(target.Left)
		idx := g.addConstant(code.Constant{Kind: code.ConstString, S: target.Field})
		if binOp != token.ILLEGAL {
			g.emit(scope, code.OpFieldGet, idx)
			g.genExpression(e.Right)
			g.emitBinary(binOp)
		} else {
			g.genExpression(e.Right)
		}
		g.emit(scope, code.OpFieldSet, idx)

	default:
		g.errorf("ir: invalid assignment target %T", e.Left)
	}
}

func (g *Generator) emitBinary(op token.Kind) {
	scope := g.current()
	switch op {
	case token.ADD:
		g.emit(scope, code.OpAdd)
	case token.SUB:
		g.emit(scope, code.OpSub)
	case token.MUL:
		g.emit(scope, code.OpMul)
	case token.DIV:
		g.emit(scope, code.OpDiv)
	case token.MOD:
		g.emit(scope, code.OpMod)
	case token.POW:
		g.emit(scope, code.OpPow)
	}
}

func (g *Generator) genIf(e *ast.If) {
	scope := g.current()
	g.genExpression(e.Condition)
	jumpElse := g.emit(scope, code.OpJumpNotTruthy, 0)

	g.genStatement(e.Consequence)
	jumpEnd := g.emit(scope, code.OpJump, 0)

	g.patchJump(scope, jumpElse, len(scope.instructions))
	if e.Alternative != nil {
		g.genStatement(e.Alternative)
	}
	g.patchJump(scope, jumpEnd, len(scope.instructions))
}

// genNamedFuncDef emits a top-level named function into the function table
// and leaves no value on the caller's stack (it's a statement).
func (g *Generator) genNamedFuncDef(fd *ast.FuncDef) {
	idx := g.registerFunction(fd)
	g.compileFunctionBody(fd, idx)
}

// genAnonFuncDef compiles an anonymous function expression into a fresh
// function-table entry and returns its index.
func (g *Generator) genAnonFuncDef(fd *ast.FuncDef) int {
	idx := len(g.functions)
	g.functions = append(g.functions, code.Function{Name: fmt.Sprintf("<anon%d>", idx)})
	g.compileFunctionBody(fd, idx)
	return idx
}

func (g *Generator) compileFunctionBody(fd *ast.FuncDef, idx int) {
	symbols := NewEnclosedSymbolTable(g.global)
	for _, param := range fd.Params.Params {
		symbols.Define(param.Name)
	}

	// keep the synthesized "<anonN>" name of an unnamed function literal
	name := fd.Name
	if name == "" {
		name = g.functions[idx].Name
	}

	fs := &funcScope{
		name:      name,
		symbols:   symbols,
		markers:   make(map[int]string),
		numParams: len(fd.Params.Params),
	}
	g.scopes = append(g.scopes, fs)

	for _, stmt := range fd.Body.Statements {
		g.genStatement(stmt)
	}
	// implicit "return none;" if the body falls through
	g.emit(fs, code.OpPushNone)
	g.emit(fs, code.OpReturn, symbols.NumDefinitions())

	g.scopes = g.scopes[:len(g.scopes)-1]

	g.functions[idx] = code.Function{
		Name:         name,
		Instructions: fs.instructions,
		NumParams:    fs.numParams,
		NumLocals:    symbols.NumDefinitions(),
		Markers:      fs.markers,
	}
}

// genFuncCall lowers a call expression. A bare identifier naming a known
// top-level function takes the direct OpCall fast path; anything else that
// resolves to a variable (a local shadowing the name, or any other
// in-scope symbol) is assumed to hold a Function value and is called
// through OpCallTop. An unnamed callee (an arbitrary expression, e.g. a
// function literal or an indexed/field-accessed value) always goes
// through OpCallTop. A named callee resolving to neither a script
// function nor a variable falls back to a host extension call.
func (g *Generator) genFuncCall(e *ast.FuncCall) {
	scope := g.current()
	for _, arg := range e.Arguments {
		g.genExpression(arg)
	}

	if e.Named {
		name := e.Callee.(*ast.Variable).Name

		if sym, ok := scope.symbols.Resolve(name); ok && sym.Scope == LocalScope {
			g.emit(scope, code.OpCallFrame, len(e.Arguments))
			g.emitLoad(scope, sym)
			g.emit(scope, code.OpCallTop)
			return
		}

		if idx, ok := g.funcIndex[name]; ok {
			g.emit(scope, code.OpCallFrame, len(e.Arguments))
			g.emit(scope, code.OpCall, idx)
			return
		}

		if sym, ok := scope.symbols.Resolve(name); ok {
			g.emit(scope, code.OpCallFrame, len(e.Arguments))
			g.emitLoad(scope, sym)
			g.emit(scope, code.OpCallTop)
			return
		}

		// Not a known script function or variable: treat it as a host
		// extension call.
		nameIdx := g.addConstant(code.Constant{Kind: code.ConstString, S: name})
		g.emit(scope, code.OpCallExt, nameIdx, len(e.Arguments))
		return
	}

	// An unnamed callee: an arbitrary expression that must evaluate to a
	// Function value (spec.md §4.4).
	g.emit(scope, code.OpCallFrame, len(e.Arguments))
	g.genExpression(e.Callee)
	g.emit(scope, code.OpCallTop)
}
