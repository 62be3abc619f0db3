// Package printlib is the reference "print"/"to_string" extension library,
// grounded on aug_std_print/aug_std_print_value/aug_std_to_string in
// original_source/test/lib/std.c. Host programs wire it in with:
//
//	registry.RegisterTable(printlib.Table(os.Stdout))
package printlib

import (
	"fmt"
	"io"

	"github.com/dr8co/augo/extension"
	"github.com/dr8co/augo/value"
)

// Table returns the function set this library registers, writing "print"
// output to w.
func Table(w io.Writer) map[string]extension.Func {
	return map[string]extension.Func{
		"print":     printFn(w),
		"to_string": toString,
	}
}

func printFn(w io.Writer) extension.Func {
	return func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			fmt.Fprint(w, value.Display(a))
		}
		fmt.Fprintln(w)
		return value.NewNone(), nil
	}
}

func toString(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("to_string: expected 1 argument, got %d", len(args))
	}
	v := args[0]
	if v.Type() == value.None {
		return value.NewNone(), nil
	}
	return value.NewString(value.Display(v)), nil
}
