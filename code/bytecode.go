package code

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ConstKind tags the variant of a pool constant.
type ConstKind byte

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstChar
	ConstString
)

// Constant is one entry of the bytecode's constant pool.
type Constant struct {
	Kind ConstKind
	I    int64
	F    float64
	B    bool
	C    byte
	S    string
}

// Function is one compiled function: its body and the metadata the VM's
// calling convention needs (parameter/local counts).
type Function struct {
	Name         string
	Instructions Instructions
	NumParams    int
	NumLocals    int
	// Markers maps an instruction address within Instructions to a label
	// (the enclosing symbol name, or a "line:col" source position) used
	// for runtime error diagnostics (spec.md §7 trace markers).
	Markers map[int]string
}

// Bytecode is the complete serializable output of the ir package: a global
// entrypoint's instructions, the function table, and the constant pool.
// Global variable references inside Instructions/Functions have already been
// fixed up from symbol name to integer index (spec.md §4.5) by the time a
// Bytecode value exists.
type Bytecode struct {
	Instructions Instructions
	Constants    []Constant
	Functions    []Function
	Markers      map[int]string
}

// magic identifies the serialized format, written at the start of every
// blob produced by Serialize.
var magic = [4]byte{'A', 'U', 'G', '1'}

// Serialize encodes bc into a self-contained byte blob suitable for caching
// to disk or shipping to another process (spec.md §6.3 "Save/Load state").
func Serialize(bc *Bytecode) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])

	writeBytes(&buf, bc.Instructions)

	writeUint32(&buf, uint32(len(bc.Constants)))
	for _, c := range bc.Constants {
		buf.WriteByte(byte(c.Kind))
		switch c.Kind {
		case ConstInt:
			writeInt64(&buf, c.I)
		case ConstFloat:
			var fb [8]byte
			binary.LittleEndian.PutUint64(fb[:], math.Float64bits(c.F))
			buf.Write(fb[:])
		case ConstBool:
			if c.B {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case ConstChar:
			buf.WriteByte(c.C)
		case ConstString:
			writeCString(&buf, c.S)
		}
	}

	writeMarkers(&buf, bc.Markers)

	writeUint32(&buf, uint32(len(bc.Functions)))
	for _, fn := range bc.Functions {
		writeCString(&buf, fn.Name)
		writeUint32(&buf, uint32(fn.NumParams))
		writeUint32(&buf, uint32(fn.NumLocals))
		writeBytes(&buf, fn.Instructions)
		writeMarkers(&buf, fn.Markers)
	}

	return buf.Bytes(), nil
}

func writeMarkers(buf *bytes.Buffer, markers map[int]string) {
	writeUint32(buf, uint32(len(markers)))
	for addr, label := range markers {
		writeUint32(buf, uint32(addr))
		writeCString(buf, label)
	}
}

func readMarkers(r *bytes.Reader) (map[int]string, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	markers := make(map[int]string, count)
	for i := uint32(0); i < count; i++ {
		addr, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		label, err := readCString(r)
		if err != nil {
			return nil, err
		}
		markers[int(addr)] = label
	}
	return markers, nil
}

// Deserialize parses a blob produced by Serialize.
func Deserialize(data []byte) (*Bytecode, error) {
	r := bytes.NewReader(data)
	var got [4]byte
	if _, err := r.Read(got[:]); err != nil || got != magic {
		return nil, fmt.Errorf("code: bad bytecode header")
	}

	bc := &Bytecode{}
	ins, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	bc.Instructions = ins

	constCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	bc.Constants = make([]Constant, constCount)
	for i := range bc.Constants {
		kindByte, err := readByte(r)
		if err != nil {
			return nil, err
		}
		c := Constant{Kind: ConstKind(kindByte)}
		switch c.Kind {
		case ConstInt:
			v, err := readInt64(r)
			if err != nil {
				return nil, err
			}
			c.I = v
		case ConstFloat:
			var fb [8]byte
			if _, err := r.Read(fb[:]); err != nil {
				return nil, err
			}
			c.F = math.Float64frombits(binary.LittleEndian.Uint64(fb[:]))
		case ConstBool:
			b, err := readByte(r)
			if err != nil {
				return nil, err
			}
			c.B = b != 0
		case ConstChar:
			b, err := readByte(r)
			if err != nil {
				return nil, err
			}
			c.C = b
		case ConstString:
			s, err := readCString(r)
			if err != nil {
				return nil, err
			}
			c.S = s
		}
		bc.Constants[i] = c
	}

	markers, err := readMarkers(r)
	if err != nil {
		return nil, err
	}
	bc.Markers = markers

	fnCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	bc.Functions = make([]Function, fnCount)
	for i := range bc.Functions {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		numParams, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		numLocals, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		body, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		fnMarkers, err := readMarkers(r)
		if err != nil {
			return nil, err
		}
		bc.Functions[i] = Function{
			Name:         name,
			NumParams:    int(numParams),
			NumLocals:    int(numLocals),
			Instructions: body,
			Markers:      fnMarkers,
		}
	}

	return bc, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readByte(r *bytes.Reader) (byte, error) { return r.ReadByte() }

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func readCString(r *bytes.Reader) (string, error) {
	var s []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(s), nil
		}
		s = append(s, b)
	}
}
