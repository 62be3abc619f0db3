// Package code defines the bytecode instruction set the ir package emits
// and the vm package executes, plus the operand encode/decode helpers and
// the on-disk bytecode serializer.
//
// Each instruction is a one-byte opcode followed by zero or more operands.
// Operand widths follow the engine's data model (spec.md §3/§4.5): 1 byte
// for small counts/indices (Bool/Char-sized operands), 4 bytes little-endian
// for constant-pool/jump/frame-slot indices. Global symbol and function
// references are already integer indices when the ir package emits them;
// [Serialize] writes instructions out unchanged.
package code

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instructions is a sequence of encoded bytecode instructions.
type Instructions []byte

// Opcode identifies a single VM instruction.
type Opcode byte

const (
	// OpPushConst pushes constants[idx] onto the stack.
	//
	// Operands: [idx:4]
	OpPushConst Opcode = iota

	// OpPushNone pushes the none value.
	OpPushNone
	// OpPushTrue pushes true.
	OpPushTrue
	// OpPushFalse pushes false.
	OpPushFalse

	// OpPop discards the top of the stack.
	OpPop

	// Arithmetic: Stack: [a, b] -> [a OP b]
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow

	// Unary: Stack: [a] -> [OP a]
	OpNeg
	OpNot

	// Comparison: Stack: [a, b] -> [bool]
	OpEq
	OpNotEq
	OpApproxEq
	OpLt
	OpGt
	OpLtEq
	OpGtEq

	// Logical short-circuit support: OpJumpIfFalseNoPop/OpJumpIfTrueNoPop
	// peek (not pop) the top of stack, used to implement "and"/"or".
	OpJumpIfFalseNoPop
	OpJumpIfTrueNoPop

	// OpJumpNotTruthy pops a value and jumps to idx if it is falsy.
	//
	// Operands: [idx:4]
	OpJumpNotTruthy

	// OpJump unconditionally jumps to idx.
	//
	// Operands: [idx:4]
	OpJump

	// OpGetGlobal/OpSetGlobal access the global symbol table by index.
	//
	// Operands: [idx:4]
	OpGetGlobal
	OpSetGlobal

	// OpGetLocal/OpSetLocal access the current frame's stack slots,
	// relative to the frame's base index.
	//
	// Operands: [idx:4]
	OpGetLocal
	OpSetLocal

	// OpArray pops count elements and pushes an array of them.
	//
	// Operands: [count:4]
	OpArray

	// OpMap pops count*2 stack items (key, value pairs) and pushes a map.
	//
	// Operands: [count:4]
	OpMap

	// OpRange pops two ints (low, high) and pushes a range value.
	OpRange

	// OpIterNew pops a value and pushes an iterator over it. Arrays and
	// ranges yield their elements; an iterator over any other value yields
	// none.
	OpIterNew

	// OpIterNext pops an iterator, pushes it back, then pushes its next
	// element (none when exhausted) and a bool (true if an element was
	// produced). Stack: [iter] -> [iter, element, hasNext]
	OpIterNext

	// OpIndexGet pops (collection, index) and pushes collection[index].
	OpIndexGet
	// OpIndexSet pops (collection, index, value), stores value at index,
	// and pushes nothing.
	OpIndexSet

	// OpFieldGet pops an object and pushes the named field's value.
	//
	// Operands: [name_idx:4] (index into the constant pool's string table)
	OpFieldGet
	// OpFieldSet pops (object, value) and stores value into the named
	// field.
	//
	// Operands: [name_idx:4]
	OpFieldSet

	// OpCallFrame marks the start of a user-defined function call and
	// records its argument count. The VM skips it: the frame is pushed by
	// the OpCall/OpCallTop that follows.
	//
	// Operands: [argc:1]
	OpCallFrame

	// OpCall invokes the function-table entry at idx (the index is
	// assigned by the ir package when the call is generated).
	//
	// Operands: [idx:4]
	OpCall

	// OpCallExt invokes a host extension function registered under the
	// name at constants[idx], passing argc arguments.
	//
	// Operands: [idx:4, argc:1]
	OpCallExt

	// OpPushFunc pushes a first-class Function value referencing the
	// function table entry at idx (spec.md §3.1/§4.4).
	//
	// Operands: [idx:4]
	OpPushFunc

	// OpCallTop pops a Function value off the stack and calls it the
	// same way OpCall does. Used for both a
	// named variable holding a function and an unnamed callee
	// expression (spec.md §4.4's CALL_GLOBAL/CALL_LOCAL/CALL_TOP all
	// reduce to this one mechanism here, since the call site doesn't
	// care where the Function value came from).
	OpCallTop

	// OpReturn pops the return value, unwinds the current frame's stack
	// slots down to its base pointer (decref'ing each), and resumes the
	// caller with the return value pushed. The VM does not read the
	// num_locals operand.
	//
	// Operands: [num_locals:4]
	OpReturn

	// OpHalt stops the VM, leaving the top of stack (if any) as the
	// script's result.
	OpHalt

	// OpImportLib registers the host extension library named at
	// constants[idx] into the running VM's call table.
	//
	// Operands: [idx:4]
	OpImportLib

	// OpImportScript loads and runs another script, named at
	// constants[idx], as a module before execution continues.
	//
	// Operands: [idx:4]
	OpImportScript

	// Supplemented math opcodes, kept at parity with aug.h's
	// AUG_OPCODE_LIST. The ir package never emits them: a script call
	// such as abs(x) goes through OpCallExt to mathlib, and these
	// opcodes are reached only from bytecode built directly with Make.
	// Stack: [a] -> [OP a]
	OpAbs
	OpSin
	OpCos
	OpAtan
	OpLn
	OpSqrt

	// OpInc/OpDec add/subtract 1 in place. Stack: [a] -> [a OP 1]
	OpInc
	OpDec
)

// Definition describes an opcode's mnemonic and operand widths in bytes.
type Definition struct {
	Name          string
	OperandWidths []int
}

//nolint:gochecknoglobals
var definitions = map[Opcode]*Definition{
	OpPushConst:         {"OpPushConst", []int{4}},
	OpPushNone:          {"OpPushNone", nil},
	OpPushTrue:          {"OpPushTrue", nil},
	OpPushFalse:         {"OpPushFalse", nil},
	OpPop:               {"OpPop", nil},
	OpAdd:               {"OpAdd", nil},
	OpSub:               {"OpSub", nil},
	OpMul:               {"OpMul", nil},
	OpDiv:               {"OpDiv", nil},
	OpMod:               {"OpMod", nil},
	OpPow:               {"OpPow", nil},
	OpNeg:               {"OpNeg", nil},
	OpNot:               {"OpNot", nil},
	OpEq:                {"OpEq", nil},
	OpNotEq:             {"OpNotEq", nil},
	OpApproxEq:          {"OpApproxEq", nil},
	OpLt:                {"OpLt", nil},
	OpGt:                {"OpGt", nil},
	OpLtEq:              {"OpLtEq", nil},
	OpGtEq:              {"OpGtEq", nil},
	OpJumpIfFalseNoPop:  {"OpJumpIfFalseNoPop", []int{4}},
	OpJumpIfTrueNoPop:   {"OpJumpIfTrueNoPop", []int{4}},
	OpJumpNotTruthy:     {"OpJumpNotTruthy", []int{4}},
	OpJump:              {"OpJump", []int{4}},
	OpGetGlobal:         {"OpGetGlobal", []int{4}},
	OpSetGlobal:         {"OpSetGlobal", []int{4}},
	OpGetLocal:          {"OpGetLocal", []int{4}},
	OpSetLocal:          {"OpSetLocal", []int{4}},
	OpArray:             {"OpArray", []int{4}},
	OpMap:               {"OpMap", []int{4}},
	OpRange:             {"OpRange", nil},
	OpIterNew:           {"OpIterNew", nil},
	OpIterNext:          {"OpIterNext", nil},
	OpIndexGet:          {"OpIndexGet", nil},
	OpIndexSet:          {"OpIndexSet", nil},
	OpFieldGet:          {"OpFieldGet", []int{4}},
	OpFieldSet:          {"OpFieldSet", []int{4}},
	OpCallFrame:         {"OpCallFrame", []int{1}},
	OpCall:              {"OpCall", []int{4}},
	OpCallExt:           {"OpCallExt", []int{4, 1}},
	OpPushFunc:          {"OpPushFunc", []int{4}},
	OpCallTop:           {"OpCallTop", nil},
	OpReturn:            {"OpReturn", []int{4}},
	OpHalt:              {"OpHalt", nil},
	OpImportLib:         {"OpImportLib", []int{4}},
	OpImportScript:      {"OpImportScript", []int{4}},
	OpAbs:               {"OpAbs", nil},
	OpSin:               {"OpSin", nil},
	OpCos:               {"OpCos", nil},
	OpAtan:              {"OpAtan", nil},
	OpLn:                {"OpLn", nil},
	OpSqrt:              {"OpSqrt", nil},
	OpInc:               {"OpInc", nil},
	OpDec:               {"OpDec", nil},
}

// Lookup returns the Definition for op.
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("code: opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes op and its operands into a single instruction.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	ins := make([]byte, length)
	ins[0] = byte(op)

	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			ins[offset] = byte(operand)
		case 4:
			binary.LittleEndian.PutUint32(ins[offset:], uint32(operand))
		}
		offset += width
	}
	return ins
}

// String renders ins as a disassembly listing, one instruction per line.
func (ins Instructions) String() string {
	var out strings.Builder
	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%04d %s\n", i, ins.fmtInstruction(def, operands))
		i += 1 + read
	}
	return out.String()
}

func (ins Instructions) fmtInstruction(def *Definition, operands []int) string {
	switch len(def.OperandWidths) {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	default:
		return fmt.Sprintf("ERROR: unhandled operand count for %s", def.Name)
	}
}

// ReadOperands decodes the operands following an opcode byte, returning them
// and the number of bytes consumed.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0
	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			operands[i] = int(ins[offset])
		case 4:
			operands[i] = int(ReadUint32(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadUint32 decodes the first 4 bytes of ins as a little-endian uint32.
func ReadUint32(ins Instructions) uint32 {
	return binary.LittleEndian.Uint32(ins)
}

// ReadUint8 returns the first byte of ins.
func ReadUint8(ins Instructions) uint8 { return ins[0] }
