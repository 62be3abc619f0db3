package code

import (
	"reflect"
	"testing"
)

func TestMakeAndReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesLen  int
	}{
		{OpPushConst, []int{65534}, 5},
		{OpCallFrame, []int{3}, 2},
		{OpCallExt, []int{1, 2}, 6},
		{OpPop, []int{}, 1},
		{OpPushFunc, []int{7}, 5},
		{OpCallTop, []int{}, 1},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		if len(ins) != tt.bytesLen {
			t.Errorf("Make(%v, %v) produced %d bytes, want %d", tt.op, tt.operands, len(ins), tt.bytesLen)
		}

		def, err := Lookup(byte(tt.op))
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		operands, n := ReadOperands(def, ins[1:])
		if n != tt.bytesLen-1 {
			t.Errorf("ReadOperands consumed %d bytes, want %d", n, tt.bytesLen-1)
		}
		if !reflect.DeepEqual(operands, tt.operands) {
			t.Errorf("ReadOperands = %v, want %v", operands, tt.operands)
		}
	}
}

func TestInstructionsString(t *testing.T) {
	ins := Instructions{}
	ins = append(ins, Make(OpPushConst, 1)...)
	ins = append(ins, Make(OpPushConst, 2)...)
	ins = append(ins, Make(OpAdd)...)

	want := "0000 OpPushConst 1\n0005 OpPushConst 2\n0010 OpAdd\n"
	if got := ins.String(); got != want {
		t.Errorf("String() =\n%q\nwant\n%q", got, want)
	}
}

func TestBytecodeSerializeRoundTrip(t *testing.T) {
	bc := &Bytecode{
		Instructions: Make(OpHalt),
		Constants: []Constant{
			{Kind: ConstInt, I: 42},
			{Kind: ConstFloat, F: 3.5},
			{Kind: ConstBool, B: true},
			{Kind: ConstChar, C: 'x'},
			{Kind: ConstString, S: "hello"},
		},
		Functions: []Function{
			{
				Name:         "add",
				Instructions: Make(OpAdd),
				NumParams:    2,
				NumLocals:    2,
				Markers:      map[int]string{0: "add"},
			},
		},
		Markers: map[int]string{0: "<script>"},
	}

	data, err := Serialize(bc)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}

	if !reflect.DeepEqual(got.Instructions, bc.Instructions) {
		t.Errorf("Instructions = %v, want %v", got.Instructions, bc.Instructions)
	}
	if !reflect.DeepEqual(got.Constants, bc.Constants) {
		t.Errorf("Constants = %v, want %v", got.Constants, bc.Constants)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "add" || got.Functions[0].NumParams != 2 {
		t.Errorf("Functions = %+v", got.Functions)
	}
	if got.Markers[0] != "<script>" {
		t.Errorf("Markers[0] = %q, want %q", got.Markers[0], "<script>")
	}
}

func TestDeserializeRejectsBadHeader(t *testing.T) {
	if _, err := Deserialize([]byte("not augo bytecode")); err == nil {
		t.Fatal("expected an error for a malformed header")
	}
}
