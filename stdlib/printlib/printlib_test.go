package printlib

import (
	"bytes"
	"testing"

	"github.com/dr8co/augo/value"
)

func TestPrintWritesDisplayedArgs(t *testing.T) {
	var buf bytes.Buffer
	table := Table(&buf)

	if _, err := table["print"]([]value.Value{value.NewInt(1), value.NewString("x")}); err != nil {
		t.Fatalf("print error: %v", err)
	}
	want := "1x\n"
	if buf.String() != want {
		t.Errorf("buf = %q, want %q", buf.String(), want)
	}
}

func TestToString(t *testing.T) {
	table := Table(&bytes.Buffer{})
	got, err := table["to_string"]([]value.Value{value.NewInt(42)})
	if err != nil {
		t.Fatalf("to_string error: %v", err)
	}
	if got.Type() != value.String || got.String() != "42" {
		t.Errorf("got %v, want %q", got, "42")
	}
}

func TestToStringNoneStaysNone(t *testing.T) {
	table := Table(&bytes.Buffer{})
	got, err := table["to_string"]([]value.Value{value.NewNone()})
	if err != nil {
		t.Fatalf("to_string error: %v", err)
	}
	if got.Type() != value.None {
		t.Errorf("got %v, want None", got.Type())
	}
}

func TestToStringWrongArity(t *testing.T) {
	table := Table(&bytes.Buffer{})
	if _, err := table["to_string"](nil); err == nil {
		t.Fatal("expected an error for 0 arguments")
	}
}
