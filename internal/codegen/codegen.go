// Package codegen implements the single-pass code generator: a growing
// byte buffer, a write cursor that doubles as the target program's
// future instruction pointer, and the data-segment address allocator.
//
// Per the redesign note in spec §9, holes are reserved and patched
// through explicit handles rather than by saving/rewinding/restoring a
// shared ip register — this makes the backpatching contract trivially
// testable in isolation from the parser that drives it.
package codegen

import "encoding/binary"

// Op is a single bytecode opcode, one byte wide.
type Op byte

const (
	OpExit   Op = 0x00
	OpPush   Op = 0x01
	OpPop    Op = 0x02
	OpStore  Op = 0x03
	OpLoad   Op = 0x04
	OpAdd    Op = 0x10
	OpSub    Op = 0x11
	OpMult   Op = 0x12
	OpDivi   Op = 0x13
	OpWrite  Op = 0x20
	OpJTrue  Op = 0x30
	OpJFalse Op = 0x31
	OpJmp    Op = 0x32
	OpEq     Op = 0x40
	OpNe     Op = 0x41
	OpAnd    Op = 0x42
	OpOr     Op = 0x43
	OpLt     Op = 0x44
	OpLe     Op = 0x45
	OpGt     Op = 0x46
	OpGe     Op = 0x47
)

var opNames = map[Op]string{
	OpExit: "EXIT", OpPush: "PUSH", OpPop: "POP", OpStore: "STORE", OpLoad: "LOAD",
	OpAdd: "ADD", OpSub: "SUB", OpMult: "MULT", OpDivi: "DIVI",
	OpWrite: "WRITE",
	OpJTrue: "JTRUE", OpJFalse: "JFALSE", OpJmp: "JMP",
	OpEq: "EQ", OpNe: "NE", OpAnd: "AND", OpOr: "OR",
	OpLt: "LT", OpLe: "LE", OpGt: "GT", OpGe: "GE",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "???"
}

// HasImmediate reports whether op is followed by a 4-byte immediate
// operand in the code stream (currently only PUSH).
func (op Op) HasImmediate() bool { return op == OpPush }

// Hole is a handle to a reserved, not-yet-patched 4-byte span in the
// code buffer.
type Hole int

// Generator accumulates a compiled program's byte code and hands out
// successive data-segment addresses for declared variables.
type Generator struct {
	code     []byte
	dataAddr uint32
}

// New returns an empty generator with its data-address cursor at 0.
func New() *Generator {
	return &Generator{}
}

// Ip returns the current write cursor: the byte offset the next
// emission will land at, which is also the address the VM will see
// for that instruction once execution reaches it.
func (g *Generator) Ip() int { return len(g.code) }

// EmitOp appends a single opcode byte.
func (g *Generator) EmitOp(op Op) {
	g.code = append(g.code, byte(op))
}

// EmitU32 appends the big-endian encoding of v.
func (g *Generator) EmitU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	g.code = append(g.code, buf[:]...)
}

// ReserveHole appends a placeholder 4-byte span (zero-filled) and
// returns a handle that Patch can later fill with the real value, once
// it's known.
func (g *Generator) ReserveHole() Hole {
	h := Hole(len(g.code))
	g.EmitU32(0)
	return h
}

// Patch overwrites the 4 bytes at hole with the big-endian encoding of
// v. It does not move the write cursor.
func (g *Generator) Patch(hole Hole, v uint32) {
	binary.BigEndian.PutUint32(g.code[int(hole):int(hole)+4], v)
}

// AllocN consumes n*elemSize bytes of data-segment address space and
// returns the base address assigned to the first of the n elements.
// This is the primitive the parser uses at each declaration group: n
// is the number of names just promoted, elemSize is 4 for scalars or
// the whole region size for a (single) array.
func (g *Generator) AllocN(n int, elemSize uint32) uint32 {
	addr := g.dataAddr
	g.dataAddr += uint32(n) * elemSize
	return addr
}

// AllocScalar consumes 4 bytes of data-segment address space and
// returns the base address assigned to the new scalar.
func (g *Generator) AllocScalar() uint32 { return g.AllocN(1, 4) }

// AllocArray consumes (hi-lo+1)*4 bytes of data-segment address space
// and returns the base address assigned to index lo.
func (g *Generator) AllocArray(lo, hi int64) uint32 {
	return g.AllocN(1, uint32(hi-lo+1)*4)
}

// DataSize returns the number of data-segment bytes allocated so far.
func (g *Generator) DataSize() uint32 { return g.dataAddr }

// Code returns the finished code buffer. The generator continues to
// own the backing array; callers that need to keep a copy beyond
// further emission should clone it.
func (g *Generator) Code() []byte { return g.code }
