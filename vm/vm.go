// Package vm implements the stack-based bytecode interpreter: the last
// stage of the pipeline, executing a *code.Bytecode produced by the ir
// package.
//
// The calling convention is adapted from the teacher's compiler/vm split
// (compile-time OpCall + runtime Frame push/pop) but carries no closures:
// every call frame is a plain function-table index plus a base stack
// pointer, since spec.md §9 excludes free variables entirely.
package vm

import (
	"fmt"
	"math"

	"github.com/dr8co/augo/code"
	"github.com/dr8co/augo/value"
)

const (
	stackSize  = 2048
	globalSize = 65536
	maxFrames  = 1024
)

// Extensions resolves and invokes host-registered native functions for
// OpCallExt, and loads named host libraries for OpImportLib (spec.md §6.2).
type Extensions interface {
	Call(name string, args []value.Value) (value.Value, error)
	Load(name string) error
}

// ScriptLoader resolves OpImportScript: compiling and running another
// script as a module. The engine package supplies the concrete
// implementation so vm need not import the parser/ir pipeline itself.
type ScriptLoader interface {
	Import(path string) error
}

// Fault is a runtime error annotated with the trace marker nearest the
// faulting instruction, giving a symbol name or source position instead of
// a bare instruction address (spec.md §7).
type Fault struct {
	Err   error
	Trace string
}

func (f *Fault) Error() string {
	if f.Trace == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %s", f.Trace, f.Err.Error())
}

func (f *Fault) Unwrap() error { return f.Err }

// VM executes a single compiled program.
type VM struct {
	constants []code.Constant
	functions []code.Function

	stack []value.Value
	sp    int

	globals []value.Value

	frames      []*Frame
	framesIndex int

	markers map[int]string

	// lastPopped holds the value most recently discarded by OpPop, so the
	// result of a script's final expression statement stays readable.
	lastPopped value.Value

	ext     Extensions
	scripts ScriptLoader
}

// New constructs a VM ready to run bc. globals, when non-nil, lets a caller
// share/reuse a global slot table across repeated Run calls (the REPL's
// incremental evaluation, spec.md §6.3).
func New(bc *code.Bytecode, globals []value.Value, ext Extensions, scripts ScriptLoader) *VM {
	mainFn := &code.Function{Instructions: bc.Instructions}
	mainFrame := NewFrame(mainFn, 0)

	frames := make([]*Frame, maxFrames)
	frames[0] = mainFrame

	if globals == nil {
		globals = make([]value.Value, globalSize)
	}

	return &VM{
		constants:   bc.Constants,
		functions:   bc.Functions,
		stack:       make([]value.Value, stackSize),
		globals:     globals,
		frames:      frames,
		framesIndex: 1,
		markers:     bc.Markers,
		ext:         ext,
		scripts:     scripts,
	}
}

// Globals exposes the VM's global slot table for reuse across Run calls.
func (vm *VM) Globals() []value.Value { return vm.globals }

func (vm *VM) currentFrame() *Frame { return vm.frames[vm.framesIndex-1] }

func (vm *VM) pushFrame(f *Frame) {
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

func (vm *VM) push(v value.Value) error {
	if vm.sp >= stackSize {
		return vm.fault(fmt.Errorf("stack overflow"))
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	v := vm.stack[vm.sp-1]
	vm.sp--
	return v
}

func (vm *VM) top() value.Value { return vm.stack[vm.sp-1] }

// StackTop returns the value left on top of the stack after Run, the
// script's result (spec.md §6.3 Eval). When the stack is empty it returns
// the value most recently discarded by OpPop (none if there was none).
func (vm *VM) StackTop() value.Value {
	if vm.sp == 0 {
		return vm.lastPopped
	}
	return vm.stack[vm.sp-1]
}

func (vm *VM) fault(err error) error {
	frame := vm.currentFrame()
	markers := vm.markers
	if frame.fn != nil && frame.fn.Markers != nil {
		markers = frame.fn.Markers
	}
	label := nearestMarker(markers, frame.ip)
	return &Fault{Err: err, Trace: label}
}

func nearestMarker(markers map[int]string, ip int) string {
	if markers == nil {
		return ""
	}
	best := -1
	label := ""
	for addr, l := range markers {
		if addr <= ip && addr > best {
			best = addr
			label = l
		}
	}
	return label
}

// Run executes the bytecode's instructions from the current frame's
// instruction pointer until OpHalt or a return from the entrypoint frame.
func (vm *VM) Run() error {
	for {
		frame := vm.currentFrame()
		ins := frame.Instructions()

		if frame.ip+1 >= len(ins) {
			if vm.framesIndex == 1 {
				return nil
			}
			vm.popFrame()
			continue
		}
		frame.ip++
		op := code.Opcode(ins[frame.ip])

		if err := vm.execute(op, frame, ins); err != nil {
			if err == errHalt {
				return nil
			}
			return err
		}
	}
}

var errHalt = fmt.Errorf("halt")

// CallEntry invokes functions[fnIdx] directly with args already bound as
// its parameters, bypassing the normal OpCallFrame/OpCall calling
// sequence — the engine's entry point for aug_call_args-style external
// invocation of a script's top-level function.
func (vm *VM) CallEntry(fnIdx int, args []value.Value) error {
	if fnIdx < 0 || fnIdx >= len(vm.functions) {
		return fmt.Errorf("call: function index %d out of range", fnIdx)
	}
	fn := &vm.functions[fnIdx]
	if len(args) != fn.NumParams {
		return fmt.Errorf("call: %q expects %d arguments, got %d", fn.Name, fn.NumParams, len(args))
	}

	basePointer := vm.sp
	for _, a := range args {
		value.Incref(a)
		if err := vm.push(a); err != nil {
			return err
		}
	}
	vm.sp = basePointer + fn.NumLocals

	vm.pushFrame(NewFrame(fn, basePointer))
	targetDepth := vm.framesIndex - 1

	for vm.framesIndex > targetDepth {
		frame := vm.currentFrame()
		ins := frame.Instructions()
		if frame.ip+1 >= len(ins) {
			vm.popFrame()
			continue
		}
		frame.ip++
		op := code.Opcode(ins[frame.ip])
		if err := vm.execute(op, frame, ins); err != nil {
			if err == errHalt {
				break
			}
			return err
		}
	}
	return nil
}

func (vm *VM) execute(op code.Opcode, frame *Frame, ins code.Instructions) error {
	switch op {
	case code.OpPushConst:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		return vm.push(vm.constantValue(idx))

	case code.OpPushNone:
		return vm.push(value.NewNone())
	case code.OpPushTrue:
		return vm.push(value.NewBool(true))
	case code.OpPushFalse:
		return vm.push(value.NewBool(false))

	case code.OpPop:
		value.Decref(vm.lastPopped)
		vm.lastPopped = vm.pop()
		return nil

	case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow:
		return vm.execBinaryArith(op)

	case code.OpNeg:
		return vm.execNeg()
	case code.OpNot:
		v := vm.pop()
		err := vm.push(value.NewBool(!v.Truthy()))
		value.Decref(v)
		return err

	case code.OpAbs, code.OpSin, code.OpCos, code.OpAtan, code.OpLn, code.OpSqrt:
		return vm.execMathUnary(op)

	case code.OpInc, code.OpDec:
		return vm.execIncDec(op)

	case code.OpEq, code.OpNotEq, code.OpApproxEq, code.OpLt, code.OpGt, code.OpLtEq, code.OpGtEq:
		return vm.execComparison(op)

	case code.OpJumpIfFalseNoPop:
		target := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		if !vm.top().Truthy() {
			frame.ip = target - 1
		}
		return nil

	case code.OpJumpIfTrueNoPop:
		target := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		if vm.top().Truthy() {
			frame.ip = target - 1
		}
		return nil

	case code.OpJumpNotTruthy:
		target := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		v := vm.pop()
		truthy := v.Truthy()
		value.Decref(v)
		if !truthy {
			frame.ip = target - 1
		}
		return nil

	case code.OpJump:
		target := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip = target - 1
		return nil

	case code.OpGetGlobal:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		v := vm.globals[idx]
		value.Incref(v)
		return vm.push(v)

	case code.OpSetGlobal:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		v := vm.pop()
		value.Decref(vm.globals[idx])
		vm.globals[idx] = v
		return nil

	case code.OpGetLocal:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		v := vm.stack[frame.basePointer+idx]
		value.Incref(v)
		return vm.push(v)

	case code.OpSetLocal:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		v := vm.pop()
		slot := frame.basePointer + idx
		value.Decref(vm.stack[slot])
		vm.stack[slot] = v
		return nil

	case code.OpArray:
		count := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		elems := make([]value.Value, count)
		copy(elems, vm.stack[vm.sp-count:vm.sp])
		vm.sp -= count
		return vm.push(value.NewArray(elems))

	case code.OpMap:
		count := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		m := value.NewMap()
		base := vm.sp - count*2
		for i := 0; i < count; i++ {
			k := vm.stack[base+i*2]
			v := vm.stack[base+i*2+1]
			m.MapSet(k, v)
			value.Decref(k)
			value.Decref(v)
		}
		vm.sp = base
		return vm.push(m)

	case code.OpRange:
		hi := vm.pop()
		lo := vm.pop()
		r := value.NewRange(lo.ToInt(), hi.ToInt())
		value.Decref(lo)
		value.Decref(hi)
		return vm.push(r)

	case code.OpIterNew:
		src := vm.pop()
		it := value.NewIterator(src)
		value.Decref(src)
		return vm.push(it)

	case code.OpIterNext:
		it := vm.pop()
		el, ok := it.IterNext()
		if ok {
			value.Incref(el)
		} else {
			el = value.NewNone()
		}
		if err := vm.push(it); err != nil {
			return err
		}
		if err := vm.push(el); err != nil {
			return err
		}
		return vm.push(value.NewBool(ok))

	case code.OpIndexGet:
		return vm.execIndexGet()

	case code.OpIndexSet:
		return vm.execIndexSet()

	case code.OpFieldGet:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		name := vm.constants[idx].S
		obj := vm.pop()
		v, ok := obj.ObjectGet(name)
		if !ok {
			value.Decref(obj)
			return vm.fault(fmt.Errorf("no field %q", name))
		}
		value.Incref(v)
		value.Decref(obj)
		return vm.push(v)

	case code.OpFieldSet:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		name := vm.constants[idx].S
		v := vm.pop()
		obj := vm.pop()
		obj.ObjectSet(name, v)
		value.Decref(v)
		value.Decref(obj)
		return nil

	case code.OpCallFrame:
		// argc travels with the immediately following OpCall; nothing to
		// do here but record nothing, the base pointer is computed there.
		frame.ip++ // consume the argc operand byte
		return nil

	case code.OpCall:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		return vm.callFunction(idx, ins, frame)

	case code.OpPushFunc:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		return vm.push(value.NewFunction(idx))

	case code.OpCallTop:
		fn := vm.pop()
		if fn.Type() != value.Function {
			return vm.fault(fmt.Errorf("type %s is not callable", fn.Type()))
		}
		return vm.callFunction(fn.FuncIndex(), ins, frame)

	case code.OpCallExt:
		nameIdx := int(code.ReadUint32(ins[frame.ip+1:]))
		argc := int(ins[frame.ip+5])
		frame.ip += 5
		name := vm.constants[nameIdx].S
		args := make([]value.Value, argc)
		copy(args, vm.stack[vm.sp-argc:vm.sp])
		vm.sp -= argc
		result, err := vm.ext.Call(name, args)
		for _, a := range args {
			value.Decref(a)
		}
		if err != nil {
			return vm.fault(err)
		}
		return vm.push(result)

	case code.OpReturn:
		numLocals := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		retVal := vm.pop()
		for vm.sp > frame.basePointer {
			value.Decref(vm.pop())
		}
		_ = numLocals
		vm.popFrame()
		return vm.push(retVal)

	case code.OpHalt:
		return errHalt

	case code.OpImportLib:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		name := vm.constants[idx].S
		if err := vm.ext.Load(name); err != nil {
			return vm.fault(err)
		}
		return nil

	case code.OpImportScript:
		idx := int(code.ReadUint32(ins[frame.ip+1:]))
		frame.ip += 4
		path := vm.constants[idx].S
		if err := vm.scripts.Import(path); err != nil {
			return vm.fault(err)
		}
		return nil

	default:
		return vm.fault(fmt.Errorf("unknown opcode %d", op))
	}
}

func (vm *VM) constantValue(idx int) value.Value {
	c := vm.constants[idx]
	switch c.Kind {
	case code.ConstInt:
		return value.NewInt(c.I)
	case code.ConstFloat:
		return value.NewFloat(c.F)
	case code.ConstBool:
		return value.NewBool(c.B)
	case code.ConstChar:
		return value.NewChar(c.C)
	case code.ConstString:
		return value.NewString(c.S)
	default:
		return value.NewNone()
	}
}

// callFunction pushes a new frame for functions[idx]. The arguments already
// sit on the stack immediately below the call; their count is taken from
// fn.NumParams, not from the preceding OpCallFrame's argc operand.
func (vm *VM) callFunction(idx int, ins code.Instructions, callerFrame *Frame) error {
	fn := &vm.functions[idx]

	argc := fn.NumParams
	basePointer := vm.sp - argc
	if basePointer < 0 {
		return vm.fault(fmt.Errorf("call to %q: not enough arguments", fn.Name))
	}

	// Extend the stack region for this frame's locals beyond its params.
	vm.sp = basePointer + fn.NumLocals

	newFrame := NewFrame(fn, basePointer)
	vm.pushFrame(newFrame)
	return nil
}

func (vm *VM) execBinaryArith(op code.Opcode) error {
	b := vm.pop()
	a := vm.pop()
	defer func() { value.Decref(a); value.Decref(b) }()

	if op == code.OpAdd && a.Type() == value.String && b.Type() == value.String {
		return vm.push(value.NewString(a.String() + b.String()))
	}
	if op == code.OpAdd && a.Type() == value.Array && b.Type() == value.Array {
		merged := make([]value.Value, 0, a.Len()+b.Len())
		for i := 0; i < a.Len(); i++ {
			el, _ := a.ArrayAt(i)
			value.Incref(el)
			merged = append(merged, el)
		}
		for i := 0; i < b.Len(); i++ {
			el, _ := b.ArrayAt(i)
			value.Incref(el)
			merged = append(merged, el)
		}
		return vm.push(value.NewArray(merged))
	}

	if a.Type() == value.Float || b.Type() == value.Float {
		x, y := a.ToFloat(), b.ToFloat()
		var r float64
		switch op {
		case code.OpAdd:
			r = x + y
		case code.OpSub:
			r = x - y
		case code.OpMul:
			r = x * y
		case code.OpDiv:
			if y == 0 {
				return vm.fault(fmt.Errorf("division by zero"))
			}
			r = x / y
		case code.OpMod:
			if y == 0 {
				return vm.fault(fmt.Errorf("modulo by zero"))
			}
			r = float64(int64(x) % int64(y))
		case code.OpPow:
			r = ipow(x, y)
		}
		return vm.push(value.NewFloat(r))
	}

	x, y := a.ToInt(), b.ToInt()
	var r int64
	switch op {
	case code.OpAdd:
		r = x + y
	case code.OpSub:
		r = x - y
	case code.OpMul:
		r = x * y
	case code.OpDiv:
		if y == 0 {
			return vm.fault(fmt.Errorf("division by zero"))
		}
		r = x / y
	case code.OpMod:
		if y == 0 {
			return vm.fault(fmt.Errorf("modulo by zero"))
		}
		r = x % y
	case code.OpPow:
		return vm.push(value.NewFloat(ipow(float64(x), float64(y))))
	}
	return vm.push(value.NewInt(r))
}

func ipow(x, y float64) float64 {
	r := 1.0
	neg := y < 0
	n := int64(y)
	if neg {
		n = -n
	}
	for i := int64(0); i < n; i++ {
		r *= x
	}
	if neg {
		return 1 / r
	}
	return r
}

func (vm *VM) execNeg() error {
	v := vm.pop()
	var out value.Value
	switch v.Type() {
	case value.Float:
		out = value.NewFloat(-v.Float())
	default:
		out = value.NewInt(-v.ToInt())
	}
	value.Decref(v)
	return vm.push(out)
}

// execMathUnary implements the single-argument transcendental opcodes,
// kept at parity with mathlib's identically-named functions (abs/sin/
// cos/atan/ln/sqrt). Compiled scripts never reach it (the ir package
// lowers those calls to OpCallExt); only directly built bytecode does.
func (vm *VM) execMathUnary(op code.Opcode) error {
	v := vm.pop()
	x := v.ToFloat()
	value.Decref(v)

	var f float64
	switch op {
	case code.OpAbs:
		f = math.Abs(x)
	case code.OpSin:
		f = math.Sin(x)
	case code.OpCos:
		f = math.Cos(x)
	case code.OpAtan:
		f = math.Atan(x)
	case code.OpLn:
		f = math.Log(x)
	case code.OpSqrt:
		f = math.Sqrt(x)
	default:
		return vm.fault(fmt.Errorf("vm: unhandled math opcode %v", op))
	}
	return vm.push(value.NewFloat(f))
}

func (vm *VM) execIncDec(op code.Opcode) error {
	v := vm.pop()
	delta := int64(1)
	if op == code.OpDec {
		delta = -1
	}
	var out value.Value
	if v.Type() == value.Float {
		out = value.NewFloat(v.Float() + float64(delta))
	} else {
		out = value.NewInt(v.ToInt() + delta)
	}
	value.Decref(v)
	return vm.push(out)
}

func (vm *VM) execComparison(op code.Opcode) error {
	b := vm.pop()
	a := vm.pop()
	defer func() { value.Decref(a); value.Decref(b) }()

	switch op {
	case code.OpEq:
		return vm.push(value.NewBool(value.Compare(a, b)))
	case code.OpNotEq:
		return vm.push(value.NewBool(!value.Compare(a, b)))
	case code.OpApproxEq:
		return vm.push(value.NewBool(value.ApproxEqual(a, b)))
	}

	x, y := a.ToFloat(), b.ToFloat()
	var r bool
	switch op {
	case code.OpLt:
		r = x < y
	case code.OpGt:
		r = x > y
	case code.OpLtEq:
		r = x <= y
	case code.OpGtEq:
		r = x >= y
	}
	return vm.push(value.NewBool(r))
}

func (vm *VM) execIndexGet() error {
	idx := vm.pop()
	coll := vm.pop()
	defer func() { value.Decref(idx); value.Decref(coll) }()

	switch coll.Type() {
	case value.Array:
		el, ok := coll.ArrayAt(int(idx.ToInt()))
		if !ok {
			return vm.fault(fmt.Errorf("array index out of range"))
		}
		value.Incref(el)
		return vm.push(el)
	case value.String:
		s := coll.String()
		i := int(idx.ToInt())
		if i < 0 || i >= len(s) {
			return vm.fault(fmt.Errorf("string index out of range"))
		}
		return vm.push(value.NewChar(s[i]))
	case value.Map:
		val, ok := coll.MapGet(idx)
		if !ok {
			return vm.push(value.NewNone())
		}
		value.Incref(val)
		return vm.push(val)
	default:
		return vm.fault(fmt.Errorf("type %s is not indexable", coll.Type()))
	}
}

func (vm *VM) execIndexSet() error {
	val := vm.pop()
	idx := vm.pop()
	coll := vm.pop()
	defer func() { value.Decref(idx); value.Decref(coll) }()

	switch coll.Type() {
	case value.Array:
		if !coll.ArraySet(int(idx.ToInt()), val) {
			value.Decref(val)
			return vm.fault(fmt.Errorf("array index out of range"))
		}
		return nil
	case value.Map:
		coll.MapSet(idx, val)
		value.Decref(val)
		return nil
	default:
		value.Decref(val)
		return vm.fault(fmt.Errorf("type %s does not support index assignment", coll.Type()))
	}
}
