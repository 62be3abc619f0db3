// Package value implements the tagged-union, manually reference-counted
// runtime value the virtual machine operates on.
//
// Unlike the teacher's GC'd object package, every heap-backed Value here
// (String, Array, Map, Range, Iterator, Object) carries an explicit
// refcount: Incref/Decref must balance across every push, pop, store, and
// copy the VM performs, and Decref frees the payload once the count reaches
// zero. This mirrors aug_value's own incref/decref discipline in
// original_source/aug.h and is the engine's testable refcount-neutrality
// property (see spec.md §8).
package value

import (
	"fmt"
	"math"
)

// Type identifies which variant of Value is populated.
type Type int

const (
	None Type = iota
	Bool
	Char
	Int
	Float
	String
	Array
	Map
	Range
	Iterator
	Function
	Object
	Userdata
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Array:
		return "array"
	case Map:
		return "map"
	case Range:
		return "range"
	case Iterator:
		return "iterator"
	case Function:
		return "function"
	case Object:
		return "object"
	case Userdata:
		return "userdata"
	default:
		return "unknown"
	}
}

// heap is the shared, reference-counted payload behind String/Array/Map/
// Range/Iterator/Object values. Its concrete field is selected by the
// owning Value's Type.
type heap struct {
	refs int

	str   []byte
	arr   []Value
	pairs map[Value]Value
	// rangeLow/rangeHigh back a Range value; rangeHigh is exclusive.
	rangeLow, rangeHigh int64
	// iterSrc/iterPos back an Iterator walking an Array or Range; an
	// Iterator over any other type yields no elements.
	iterSrc *Value
	iterPos int
	// fields backs an Object: a plain named-value bag (the engine has no
	// class hierarchy, only host-registered object instances).
	fields map[string]Value
	// userdata is an opaque host-owned pointer (spec.md §6.1 host handles).
	userdata any
}

// Value is the VM's universal runtime cell: a type tag plus either an
// inline scalar payload or a pointer to a shared, refcounted heap payload.
type Value struct {
	typ Type

	b bool
	c byte
	i int64
	f float64

	// function index into the bytecode's function table, when typ == Function.
	fn int

	h *heap
}

// Type reports v's variant.
func (v Value) Type() Type { return v.typ }

// NewNone returns the none value.
func NewNone() Value { return Value{typ: None} }

// NewBool wraps b.
func NewBool(b bool) Value { return Value{typ: Bool, b: b} }

// NewChar wraps c.
func NewChar(c byte) Value { return Value{typ: Char, c: c} }

// NewInt wraps i.
func NewInt(i int64) Value { return Value{typ: Int, i: i} }

// NewFloat wraps f.
func NewFloat(f float64) Value { return Value{typ: Float, f: f} }

// NewFunction wraps the bytecode function table index idx.
func NewFunction(idx int) Value { return Value{typ: Function, fn: idx} }

// NewString allocates a new refcounted string with refs=1.
func NewString(s string) Value {
	return Value{typ: String, h: &heap{refs: 1, str: []byte(s)}}
}

// NewArray allocates a new refcounted array with refs=1, taking ownership of
// elems (elems' own references are not re-incremented).
func NewArray(elems []Value) Value {
	return Value{typ: Array, h: &heap{refs: 1, arr: elems}}
}

// NewMap allocates a new empty refcounted map with refs=1.
func NewMap() Value {
	return Value{typ: Map, h: &heap{refs: 1, pairs: make(map[Value]Value)}}
}

// NewRange allocates a new refcounted [low, high) range with refs=1.
func NewRange(low, high int64) Value {
	return Value{typ: Range, h: &heap{refs: 1, rangeLow: low, rangeHigh: high}}
}

// NewIterator allocates an iterator over src, positioned before the first
// element, with refs=1. src is incref'd since the iterator holds a
// reference to it for its lifetime.
func NewIterator(src Value) Value {
	Incref(src)
	return Value{typ: Iterator, h: &heap{refs: 1, iterSrc: &src, iterPos: 0}}
}

// NewObject allocates a new empty refcounted object (a named-field bag) with
// refs=1.
func NewObject() Value {
	return Value{typ: Object, h: &heap{refs: 1, fields: make(map[string]Value)}}
}

// NewUserdata wraps an opaque host pointer in a refcounted cell with refs=1.
func NewUserdata(p any) Value {
	return Value{typ: Userdata, h: &heap{refs: 1, userdata: p}}
}

// Incref increments v's heap refcount. It is a no-op for inline (non-heap)
// types, matching aug_incref's own type switch.
func Incref(v Value) {
	if v.h != nil {
		v.h.refs++
	}
}

// Decref decrements v's heap refcount, freeing nested references once it
// reaches zero. It is a no-op for inline types.
func Decref(v Value) {
	if v.h == nil {
		return
	}
	v.h.refs--
	if v.h.refs > 0 {
		return
	}
	switch v.typ {
	case Array:
		for _, e := range v.h.arr {
			Decref(e)
		}
	case Map:
		for k, val := range v.h.pairs {
			Decref(k)
			Decref(val)
		}
	case Iterator:
		if v.h.iterSrc != nil {
			Decref(*v.h.iterSrc)
		}
	}
}

// Bool returns v's boolean payload. Valid only when v.Type() == Bool.
func (v Value) Bool() bool { return v.b }

// Char returns v's char payload. Valid only when v.Type() == Char.
func (v Value) Char() byte { return v.c }

// Int returns v's int payload. Valid only when v.Type() == Int.
func (v Value) Int() int64 { return v.i }

// Float returns v's float payload. Valid only when v.Type() == Float.
func (v Value) Float() float64 { return v.f }

// FuncIndex returns the function table index. Valid only when
// v.Type() == Function.
func (v Value) FuncIndex() int { return v.fn }

// String returns the string payload. Valid only when v.Type() == String.
func (v Value) String() string {
	if v.h == nil {
		return ""
	}
	return string(v.h.str)
}

// Len reports the element count of a String, Array, or Map value.
func (v Value) Len() int {
	if v.h == nil {
		return 0
	}
	switch v.typ {
	case String:
		return len(v.h.str)
	case Array:
		return len(v.h.arr)
	case Map:
		return len(v.h.pairs)
	default:
		return 0
	}
}

// ArrayAt returns the element at index i of an Array value.
func (v Value) ArrayAt(i int) (Value, bool) {
	if v.h == nil || i < 0 || i >= len(v.h.arr) {
		return Value{}, false
	}
	return v.h.arr[i], true
}

// ArraySet stores val at index i of an Array value, decref'ing the
// previous occupant and incref'ing val.
func (v Value) ArraySet(i int, val Value) bool {
	if v.h == nil || i < 0 || i >= len(v.h.arr) {
		return false
	}
	Decref(v.h.arr[i])
	Incref(val)
	v.h.arr[i] = val
	return true
}

// ArrayAppend appends val to an Array value, incref'ing it.
func (v Value) ArrayAppend(val Value) {
	Incref(val)
	v.h.arr = append(v.h.arr, val)
}

// ArrayRemove removes the element at index i from an Array value, decref'ing
// it.
func (v Value) ArrayRemove(i int) bool {
	if v.h == nil || i < 0 || i >= len(v.h.arr) {
		return false
	}
	Decref(v.h.arr[i])
	v.h.arr = append(v.h.arr[:i], v.h.arr[i+1:]...)
	return true
}

// storedKey returns the key already in the map whose string text equals a
// String key, so separately allocated strings find the same entry; any
// other key is returned unchanged.
func (v Value) storedKey(key Value) Value {
	if key.typ == String {
		for k := range v.h.pairs {
			if k.typ == String && k.String() == key.String() {
				return k
			}
		}
	}
	return key
}

// MapGet looks up key in a Map value.
func (v Value) MapGet(key Value) (Value, bool) {
	if v.h == nil {
		return Value{}, false
	}
	val, ok := v.h.pairs[v.storedKey(key)]
	return val, ok
}

// MapSet stores val at key in a Map value, incref'ing both and decref'ing
// any value the key previously held.
func (v Value) MapSet(key, val Value) {
	key = v.storedKey(key)
	if old, ok := v.h.pairs[key]; ok {
		Decref(old)
	} else {
		Incref(key)
	}
	Incref(val)
	v.h.pairs[key] = val
}

// MapPairs returns the map's entries for iteration/printing.
func (v Value) MapPairs() map[Value]Value {
	if v.h == nil {
		return nil
	}
	return v.h.pairs
}

// RangeBounds returns a Range value's [low, high) bounds.
func (v Value) RangeBounds() (int64, int64) {
	if v.h == nil {
		return 0, 0
	}
	return v.h.rangeLow, v.h.rangeHigh
}

// IterNext advances an Iterator, returning its next element and whether one
// was available.
func (v Value) IterNext() (Value, bool) {
	if v.h == nil || v.h.iterSrc == nil {
		return Value{}, false
	}
	src := *v.h.iterSrc
	switch src.typ {
	case Array:
		if v.h.iterPos >= len(src.h.arr) {
			return Value{}, false
		}
		el := src.h.arr[v.h.iterPos]
		v.h.iterPos++
		return el, true
	case Range:
		cur := src.h.rangeLow + int64(v.h.iterPos)
		if cur >= src.h.rangeHigh {
			return Value{}, false
		}
		v.h.iterPos++
		return NewInt(cur), true
	default:
		return Value{}, false
	}
}

// ObjectGet reads a named field from an Object value.
func (v Value) ObjectGet(name string) (Value, bool) {
	if v.h == nil {
		return Value{}, false
	}
	val, ok := v.h.fields[name]
	return val, ok
}

// ObjectSet writes a named field on an Object value, incref'ing val and
// decref'ing any prior occupant.
func (v Value) ObjectSet(name string, val Value) {
	if old, ok := v.h.fields[name]; ok {
		Decref(old)
	}
	Incref(val)
	v.h.fields[name] = val
}

// Userdata returns the opaque host pointer. Valid only when
// v.Type() == Userdata.
func (v Value) Userdata() any {
	if v.h == nil {
		return nil
	}
	return v.h.userdata
}

// Truthy applies the engine's truthiness rule: none and false are falsy,
// zero int/float/char are falsy, everything else (including empty
// strings/arrays/maps) is truthy.
func (v Value) Truthy() bool {
	switch v.typ {
	case None:
		return false
	case Bool:
		return v.b
	case Int:
		return v.i != 0
	case Float:
		return v.f != 0
	case Char:
		return v.c != 0
	default:
		return true
	}
}

// ToInt coerces v to an int64, the way arithmetic opcodes do when mixing
// int/float/char operands.
func (v Value) ToInt() int64 {
	switch v.typ {
	case Int:
		return v.i
	case Float:
		return int64(v.f)
	case Char:
		return int64(v.c)
	case Bool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ToFloat coerces v to a float64.
func (v Value) ToFloat() float64 {
	switch v.typ {
	case Float:
		return v.f
	case Int:
		return float64(v.i)
	case Char:
		return float64(v.c)
	default:
		return 0
	}
}

// Display renders v the way the reference print extension does (see
// stdlib/printlib), used by the REPL and CLI to show results.
func Display(v Value) string {
	switch v.typ {
	case None:
		return "none"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Char:
		return string(rune(v.c))
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%0.3f", v.f)
	case String:
		return v.String()
	case Array:
		out := "["
		for i, e := range v.h.arr {
			if i > 0 {
				out += " "
			}
			out += Display(e)
		}
		return out + "]"
	case Map:
		out := "{"
		first := true
		for k, val := range v.h.pairs {
			if !first {
				out += ", "
			}
			first = false
			out += Display(k) + ": " + Display(val)
		}
		return out + "}"
	case Range:
		lo, hi := v.RangeBounds()
		return fmt.Sprintf("%d:%d", lo, hi)
	case Function:
		return fmt.Sprintf("function %d", v.fn)
	case Object:
		return "object"
	case Userdata:
		return "userdata"
	default:
		return "?"
	}
}

// Compare reports whether a and b are equal by value, the semantics behind
// the engine's "==" operator (aug_compare in original_source/aug.h).
// Arrays compare element by element; maps, ranges, iterators, objects and
// userdata compare by identity.
func Compare(a, b Value) bool {
	if a.typ != b.typ {
		// int/float/char compare across type for numeric equality.
		if isNumeric(a.typ) && isNumeric(b.typ) {
			return a.ToFloat() == b.ToFloat()
		}
		return false
	}
	switch a.typ {
	case None:
		return true
	case Bool:
		return a.b == b.b
	case Char:
		return a.c == b.c
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case String:
		return a.String() == b.String()
	case Function:
		return a.fn == b.fn
	case Array:
		if len(a.h.arr) != len(b.h.arr) {
			return false
		}
		for i := range a.h.arr {
			if !Compare(a.h.arr[i], b.h.arr[i]) {
				return false
			}
		}
		return true
	case Map, Range, Iterator, Object, Userdata:
		return a.h == b.h
	default:
		return false
	}
}

func isNumeric(t Type) bool {
	return t == Int || t == Float || t == Char
}

// ApproxEqual implements "~=": exact equality for non-float types, and a
// fixed epsilon tolerance when either side is a float.
func ApproxEqual(a, b Value) bool {
	if a.typ == Float || b.typ == Float {
		return math.Abs(a.ToFloat()-b.ToFloat()) < 1e-6
	}
	return Compare(a, b)
}
