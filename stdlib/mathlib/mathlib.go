// Package mathlib is the reference math extension library, grounded on
// aug_std_random/aug_std_snap/aug_std_floor in
// original_source/test/lib/std.c. The single-argument transcendental
// functions (abs/sin/cos/atan/ln/sqrt) also exist as VM opcodes
// (code.OpAbs etc.), but compiled scripts never emit those: a script call
// such as sqrt(x) reaches this table by name through OpCallExt. The table
// also supplies "random"/"snap"/"floor", which have no opcode of their own.
package mathlib

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/dr8co/augo/extension"
	"github.com/dr8co/augo/value"
)

// Table returns the function set this library registers.
func Table() map[string]extension.Func {
	return map[string]extension.Func{
		"random": random,
		"snap":   snap,
		"floor":  floorFn,
		"abs":    unary(math.Abs),
		"sin":    unary(math.Sin),
		"cos":    unary(math.Cos),
		"atan":   unary(math.Atan),
		"ln":     unary(math.Log),
		"sqrt":   unary(math.Sqrt),
	}
}

func random(args []value.Value) (value.Value, error) {
	switch len(args) {
	case 0:
		return value.NewInt(rand.Int63()), nil
	case 1:
		n := args[0].ToInt()
		if n <= 0 {
			return value.Value{}, fmt.Errorf("random: argument must be positive")
		}
		return value.NewInt(rand.Int63n(n)), nil
	case 2:
		lo, hi := args[0].ToInt(), args[1].ToInt()
		return value.NewInt(rand.Int63n(hi-lo+1) + lo), nil
	default:
		return value.Value{}, fmt.Errorf("random: expected 0, 1, or 2 arguments, got %d", len(args))
	}
}

func snap(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, fmt.Errorf("snap: expected 2 arguments, got %d", len(args))
	}
	x := args[0].ToInt()
	grid := args[1].ToInt()
	if grid == 0 {
		return value.Value{}, fmt.Errorf("snap: grid must not be zero")
	}
	return value.NewInt(int64(math.Floor(float64(x)/float64(grid))) * grid), nil
}

func floorFn(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("floor: expected 1 argument, got %d", len(args))
	}
	return value.NewInt(int64(math.Floor(args[0].ToFloat()))), nil
}

func unary(f func(float64) float64) extension.Func {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return value.NewFloat(f(args[0].ToFloat())), nil
	}
}
