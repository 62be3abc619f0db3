package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{NewNone(), false},
		{NewBool(true), true},
		{NewBool(false), false},
		{NewInt(0), false},
		{NewInt(5), true},
		{NewFloat(0), false},
		{NewFloat(1.5), true},
		{NewChar(0), false},
		{NewChar('a'), true},
		{NewString(""), true},
		{NewArray(nil), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v.Type(), got, c.want)
		}
	}
}

func TestRefcountArray(t *testing.T) {
	elem := NewString("hi")
	arr := NewArray([]Value{elem})
	if arr.h.refs != 1 {
		t.Fatalf("arr.h.refs = %d, want 1", arr.h.refs)
	}
	Incref(arr)
	if arr.h.refs != 2 {
		t.Fatalf("arr.h.refs = %d, want 2", arr.h.refs)
	}
	Decref(arr)
	if arr.h.refs != 1 {
		t.Fatalf("arr.h.refs = %d, want 1", arr.h.refs)
	}
	// Dropping the last reference must cascade into the element.
	Decref(arr)
	if elem.h.refs != 0 {
		t.Errorf("elem.h.refs = %d, want 0 after array's last decref", elem.h.refs)
	}
}

func TestArrayAppendRemove(t *testing.T) {
	arr := NewArray(nil)
	arr.ArrayAppend(NewInt(1))
	arr.ArrayAppend(NewInt(2))
	if arr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", arr.Len())
	}
	v, ok := arr.ArrayAt(1)
	if !ok || v.Int() != 2 {
		t.Fatalf("ArrayAt(1) = %v, %v; want 2, true", v, ok)
	}
	arr.ArrayRemove(0)
	if arr.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", arr.Len())
	}
	v, _ = arr.ArrayAt(0)
	if v.Int() != 2 {
		t.Errorf("ArrayAt(0) after remove = %v, want 2", v.Int())
	}
}

func TestMapGetSet(t *testing.T) {
	m := NewMap()
	key := NewString("k")
	m.MapSet(key, NewInt(42))
	v, ok := m.MapGet(key)
	if !ok || v.Int() != 42 {
		t.Fatalf("MapGet = %v, %v; want 42, true", v, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestRangeIterator(t *testing.T) {
	r := NewRange(1, 4)
	it := NewIterator(r)
	var got []int64
	for {
		v, ok := it.IterNext()
		if !ok {
			break
		}
		got = append(got, v.Int())
	}
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCompareCrossNumericType(t *testing.T) {
	if !Compare(NewInt(5), NewFloat(5.0)) {
		t.Error("expected Int(5) to compare equal to Float(5.0)")
	}
	if Compare(NewInt(5), NewString("5")) {
		t.Error("expected Int(5) to not compare equal to String(\"5\")")
	}
}

func TestApproxEqual(t *testing.T) {
	if !ApproxEqual(NewFloat(1.0000001), NewFloat(1.0000002)) {
		t.Error("expected values within epsilon to be approximately equal")
	}
	if ApproxEqual(NewFloat(1.0), NewFloat(1.1)) {
		t.Error("expected values outside epsilon to not be approximately equal")
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewNone(), "none"},
		{NewBool(true), "true"},
		{NewInt(42), "42"},
		{NewString("hi"), "hi"},
		{NewArray([]Value{NewInt(1), NewInt(2)}), "[1 2]"},
	}
	for _, tt := range tests {
		if got := Display(tt.v); got != tt.want {
			t.Errorf("Display(%v) = %q, want %q", tt.v.Type(), got, tt.want)
		}
	}
}
