// Package testkit is the reference collections-and-verification extension
// library. Its collection helpers (get/exists/concat/append/remove/front/
// back/length/contains/split/swap) are grounded on
// original_source/test/lib/std.c; its "expect" verification function is
// grounded on test_verify/test_run in original_source/test/main.c, which
// scripts under original_source/test/ call to record pass/fail counts for
// a session. Session state here is kept per-Session rather than in a
// package global, so multiple engines can run test scripts concurrently
// without sharing counters.
package testkit

import (
	"fmt"
	"strings"

	"github.com/dr8co/augo/extension"
	"github.com/dr8co/augo/value"
)

// Session accumulates expect() pass/fail counts for one test run.
type Session struct {
	Passed int
	Total  int
}

// Summary reports whether every expectation in the session passed.
func (s *Session) Summary() (passed, total int, ok bool) {
	return s.Passed, s.Total, s.Total > 0 && s.Passed == s.Total
}

// Table returns the function set this library registers, recording
// expect() outcomes into session.
func Table(session *Session) map[string]extension.Func {
	return map[string]extension.Func{
		"expect":   expectFn(session),
		"get":      get,
		"exists":   exists,
		"concat":   concat,
		"append":   appendFn,
		"remove":   removeFn,
		"front":    front,
		"back":     back,
		"length":   length,
		"contains": contains,
		"split":    split,
		"swap":     swap,
	}
}

func expectFn(session *Session) extension.Func {
	return func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return value.Value{}, fmt.Errorf("expect: expected at least 1 argument")
		}
		session.Total++
		if args[0].Truthy() {
			session.Passed++
		}
		return value.NewNone(), nil
	}
}

func get(args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Type() != value.Map {
		return value.Value{}, fmt.Errorf("get: expected (map, key)")
	}
	v, ok := args[0].MapGet(args[1])
	if !ok {
		return value.NewNone(), nil
	}
	return v, nil
}

func exists(args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Type() != value.Map {
		return value.Value{}, fmt.Errorf("exists: expected (map, key)")
	}
	_, ok := args[0].MapGet(args[1])
	return value.NewBool(ok), nil
}

func concat(args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		switch a.Type() {
		case value.Char:
			sb.WriteByte(a.Char())
		case value.String:
			sb.WriteString(a.String())
		}
	}
	return value.NewString(sb.String()), nil
}

func appendFn(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, fmt.Errorf("append: expected at least 1 argument")
	}
	target := args[0]
	switch target.Type() {
	case value.Array:
		for _, a := range args[1:] {
			target.ArrayAppend(a)
		}
	case value.String:
		// Strings are immutable cells here; append has nothing to mutate
		// in place since Value carries no string-builder heap variant
		// beyond its fixed buffer, so this is a documented no-op for
		// strings (unlike the C engine's in-place aug_string_push).
	}
	return value.NewNone(), nil
}

func removeFn(args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Type() != value.Array {
		return value.Value{}, fmt.Errorf("remove: expected (array, index)")
	}
	args[0].ArrayRemove(int(args[1].ToInt()))
	return value.NewNone(), nil
}

func front(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Type() != value.Array {
		return value.Value{}, fmt.Errorf("front: expected (array)")
	}
	v, ok := args[0].ArrayAt(0)
	if !ok {
		return value.NewNone(), nil
	}
	return v, nil
}

func back(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Type() != value.Array {
		return value.Value{}, fmt.Errorf("back: expected (array)")
	}
	v, ok := args[0].ArrayAt(args[0].Len() - 1)
	if !ok {
		return value.NewNone(), nil
	}
	return v, nil
}

func length(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("length: expected 1 argument")
	}
	return value.NewInt(int64(args[0].Len())), nil
}

func contains(args []value.Value) (value.Value, error) {
	if len(args) != 2 && len(args) != 4 {
		return value.Value{}, fmt.Errorf("contains: expected (array, value) or (array, value, start, end)")
	}
	arr := args[0]
	target := args[1]
	start, end := 0, arr.Len()
	if len(args) == 4 {
		start = int(args[2].ToInt())
		end = int(args[3].ToInt())
	}
	for i := start; i < end; i++ {
		el, ok := arr.ArrayAt(i)
		if ok && value.Compare(target, el) {
			return value.NewBool(true), nil
		}
	}
	return value.NewBool(false), nil
}

func split(args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Type() != value.String || args[1].Type() != value.String {
		return value.Value{}, fmt.Errorf("split: expected (string, delimiter)")
	}
	parts := strings.Split(args[0].String(), args[1].String())
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.NewString(p)
	}
	return value.NewArray(elems), nil
}

func swap(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, fmt.Errorf("swap: expected 2 arguments")
	}
	args[0], args[1] = args[1], args[0]
	return value.NewNone(), nil
}
