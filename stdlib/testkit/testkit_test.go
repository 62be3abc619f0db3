package testkit

import (
	"testing"

	"github.com/dr8co/augo/value"
)

func TestExpectTracksPassFail(t *testing.T) {
	session := &Session{}
	table := Table(session)

	if _, err := table["expect"]([]value.Value{value.NewBool(true)}); err != nil {
		t.Fatalf("expect error: %v", err)
	}
	if _, err := table["expect"]([]value.Value{value.NewBool(false)}); err != nil {
		t.Fatalf("expect error: %v", err)
	}

	passed, total, ok := session.Summary()
	if passed != 1 || total != 2 || ok {
		t.Errorf("Summary() = (%d, %d, %v), want (1, 2, false)", passed, total, ok)
	}
}

func TestSummaryOkWhenAllPass(t *testing.T) {
	session := &Session{}
	table := Table(session)
	table["expect"]([]value.Value{value.NewBool(true)})
	table["expect"]([]value.Value{value.NewInt(1)})

	_, _, ok := session.Summary()
	if !ok {
		t.Error("expected Summary() ok=true when every expectation passed")
	}
}

func TestMapGetExists(t *testing.T) {
	table := Table(&Session{})
	m := value.NewMap()
	key := value.NewString("k")
	m.MapSet(key, value.NewInt(9))

	got, err := table["get"]([]value.Value{m, key})
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Int() != 9 {
		t.Errorf("got %v, want 9", got)
	}

	exists, err := table["exists"]([]value.Value{m, value.NewString("missing")})
	if err != nil {
		t.Fatalf("exists error: %v", err)
	}
	if exists.Truthy() {
		t.Error("expected exists() to be false for a missing key")
	}
}

func TestConcat(t *testing.T) {
	table := Table(&Session{})
	got, err := table["concat"]([]value.Value{value.NewString("foo"), value.NewString("bar")})
	if err != nil {
		t.Fatalf("concat error: %v", err)
	}
	if got.String() != "foobar" {
		t.Errorf("got %q, want %q", got.String(), "foobar")
	}
}

func TestAppendRemoveFrontBack(t *testing.T) {
	table := Table(&Session{})
	arr := value.NewArray(nil)
	table["append"]([]value.Value{arr, value.NewInt(1), value.NewInt(2), value.NewInt(3)})

	front, _ := table["front"]([]value.Value{arr})
	back, _ := table["back"]([]value.Value{arr})
	if front.Int() != 1 || back.Int() != 3 {
		t.Errorf("front=%v back=%v, want 1 and 3", front, back)
	}

	table["remove"]([]value.Value{arr, value.NewInt(0)})
	length, _ := table["length"]([]value.Value{arr})
	if length.Int() != 2 {
		t.Errorf("length = %v, want 2", length)
	}
}

func TestContainsWithRange(t *testing.T) {
	table := Table(&Session{})
	arr := value.NewArray([]value.Value{value.NewInt(1), value.NewInt(2), value.NewInt(3)})

	got, err := table["contains"]([]value.Value{arr, value.NewInt(2)})
	if err != nil {
		t.Fatalf("contains error: %v", err)
	}
	if !got.Truthy() {
		t.Error("expected contains(arr, 2) to be true")
	}

	got, err = table["contains"]([]value.Value{arr, value.NewInt(2), value.NewInt(0), value.NewInt(1)})
	if err != nil {
		t.Fatalf("contains error: %v", err)
	}
	if got.Truthy() {
		t.Error("expected contains(arr, 2, 0, 1) to be false (2 is outside [0,1))")
	}
}

func TestSplit(t *testing.T) {
	table := Table(&Session{})
	got, err := table["split"]([]value.Value{value.NewString("a,b,c"), value.NewString(",")})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("got %d elements, want 3", got.Len())
	}
	first, _ := got.ArrayAt(0)
	if first.String() != "a" {
		t.Errorf("first element = %q, want %q", first.String(), "a")
	}
}

func TestSwap(t *testing.T) {
	table := Table(&Session{})
	args := []value.Value{value.NewInt(1), value.NewInt(2)}
	if _, err := table["swap"](args); err != nil {
		t.Fatalf("swap error: %v", err)
	}
	if args[0].Int() != 2 || args[1].Int() != 1 {
		t.Errorf("args = %v, want swapped", args)
	}
}
