// Package input wraps a source character stream with position tracking and a
// one-step undo, mirroring the aug_input abstraction the engine's lexer is
// built on: both file-backed and in-memory (string) scripts read through the
// same small interface.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dr8co/augo/token"
)

// Input is a rewindable byte stream with source-position tracking. Callers
// read one byte at a time with Get, may look ahead with Peek, and may rewind
// exactly one step with Unget.
//
// Two positions are kept — the current one and the previous one — in a
// 2-slot ring buffer so a single Unget after a Get restores the prior
// position exactly. This mirrors aug_input's own 2-entry position history.
type Input struct {
	name   string
	reader *bufio.Reader
	closer io.Closer

	pos     [2]token.Position
	idx     int
	started bool
}

// New wraps r as an Input named name, used only for diagnostics.
func New(name string, r io.Reader) *Input {
	return &Input{
		name:   name,
		reader: bufio.NewReader(r),
		pos:    [2]token.Position{{Line: 1, Col: 1}, {Line: 1, Col: 1}},
	}
}

// Open opens the file at path for reading.
func Open(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	in := New(path, f)
	in.closer = f
	return in, nil
}

// OpenString wraps an in-memory script; name is used only for diagnostics.
func OpenString(name, source string) *Input {
	return New(name, stringReader(source))
}

func stringReader(s string) io.Reader {
	return &stringSource{s: s}
}

type stringSource struct {
	s string
	i int
}

func (s *stringSource) Read(p []byte) (int, error) {
	if s.i >= len(s.s) {
		return 0, io.EOF
	}
	n := copy(p, s.s[s.i:])
	s.i += n
	return n, nil
}

// Close releases the underlying file handle, if any.
func (in *Input) Close() error {
	if in.closer != nil {
		return in.closer.Close()
	}
	return nil
}

// Name returns the input's diagnostic name (file path, or the name passed to
// New/OpenString).
func (in *Input) Name() string {
	return in.name
}

// Pos returns the current source position.
func (in *Input) Pos() token.Position {
	return in.pos[in.idx]
}

// Get reads and returns the next byte, advancing the position. io.EOF is
// returned once the stream is exhausted.
func (in *Input) Get() (byte, error) {
	b, err := in.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	in.advance(b)
	return b, nil
}

// Peek returns the next byte without consuming it. io.EOF is returned once
// the stream is exhausted.
func (in *Input) Peek() (byte, error) {
	bs, err := in.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Unget pushes b back onto the stream and restores the previous position.
// Only a single level of undo is supported, matching the lexer's own
// one-token lookahead discipline.
func (in *Input) Unget(b byte) error {
	if err := in.reader.UnreadByte(); err != nil {
		// The byte didn't come from a ReadByte call (e.g. pushed back
		// manually); fall back to re-feeding it through a prefixed reader.
		in.reader = bufio.NewReader(io.MultiReader(singleByteReader(b), in.reader))
	}
	in.rewind()
	return nil
}

func singleByteReader(b byte) io.Reader {
	return &oneByte{b: b}
}

type oneByte struct {
	b    byte
	done bool
}

func (o *oneByte) Read(p []byte) (int, error) {
	if o.done || len(p) == 0 {
		return 0, io.EOF
	}
	p[0] = o.b
	o.done = true
	return 1, nil
}

// advance moves the position forward over b and rotates the 2-slot history.
//
// The rotation is a plain modular increment, not the signed-modulo branch
// the original C position tracker used — that branch could never actually
// go negative in the C source and was dead code (see DESIGN.md).
func (in *Input) advance(b byte) {
	next := in.pos[in.idx]
	next.FileOffset++
	if b == '\n' {
		next.Line++
		next.Col = 1
		next.LineStart = next.FileOffset
	} else {
		next.Col++
	}
	in.idx = ((in.idx + 1) % 2 + 2) % 2
	in.pos[in.idx] = next
}

// rewind steps the 2-slot history back by one.
func (in *Input) rewind() {
	in.idx = ((in.idx - 1) % 2 + 2) % 2
}
