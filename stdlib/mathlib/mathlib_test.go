package mathlib

import (
	"math"
	"testing"

	"github.com/dr8co/augo/value"
)

func TestUnaryFunctions(t *testing.T) {
	table := Table()
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"abs", -3, 3},
		{"sqrt", 16, 4},
		{"sin", 0, 0},
		{"cos", 0, 1},
	}
	for _, tt := range tests {
		got, err := table[tt.name]([]value.Value{value.NewFloat(tt.in)})
		if err != nil {
			t.Fatalf("%s: error: %v", tt.name, err)
		}
		if math.Abs(got.Float()-tt.want) > 1e-9 {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.in, got.Float(), tt.want)
		}
	}
}

func TestSnap(t *testing.T) {
	table := Table()
	got, err := table["snap"]([]value.Value{value.NewInt(17), value.NewInt(5)})
	if err != nil {
		t.Fatalf("snap error: %v", err)
	}
	if got.Int() != 15 {
		t.Errorf("got %v, want 15", got)
	}
}

func TestSnapZeroGridErrors(t *testing.T) {
	table := Table()
	if _, err := table["snap"]([]value.Value{value.NewInt(1), value.NewInt(0)}); err == nil {
		t.Fatal("expected an error for a zero grid")
	}
}

func TestFloor(t *testing.T) {
	table := Table()
	got, err := table["floor"]([]value.Value{value.NewFloat(3.7)})
	if err != nil {
		t.Fatalf("floor error: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("got %v, want 3", got)
	}
}

func TestRandomRange(t *testing.T) {
	table := Table()
	got, err := table["random"]([]value.Value{value.NewInt(5), value.NewInt(10)})
	if err != nil {
		t.Fatalf("random error: %v", err)
	}
	if got.Int() < 5 || got.Int() > 10 {
		t.Errorf("got %v, want a value in [5, 10]", got)
	}
}

func TestRandomNonPositiveBoundErrors(t *testing.T) {
	table := Table()
	if _, err := table["random"]([]value.Value{value.NewInt(0)}); err == nil {
		t.Fatal("expected an error for a non-positive bound")
	}
}
