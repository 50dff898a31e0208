// Package vm implements the stack-based virtual machine that executes
// bytecode produced by internal/codegen: a fixed-size data segment, a
// fixed-size evaluation stack, and a dispatch loop over the opcode
// table in spec §4.5. Every stored value is a big-endian uint32; signed
// arithmetic wraps per Go's usual two's-complement conversion rules.
package vm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"rascal/internal/codegen"
)

// DataSize and StackSize are the fixed region sizes spec §4.1 assigns
// the data segment and the evaluation stack, in bytes.
const (
	DataSize  = 256
	StackSize = 256
)

// RuntimeError reports an out-of-bounds access, stack over/underflow,
// or an unrecognized opcode encountered at ip.
type RuntimeError struct {
	IP      int
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("Runtime Error: %s (ip=%d)", e.Message, e.IP)
}

// VM holds one program's mutable execution state.
type VM struct {
	code  []byte
	data  [DataSize]byte
	stack [StackSize]byte
	ip    int
	sp    int // byte offset of the next free stack slot

	out   io.Writer
	trace func(ip int, op codegen.Op)
}

// Option configures a VM at construction time, in the teacher's
// functional-options idiom.
type Option interface{ apply(m *VM) }

type traceOption func(ip int, op codegen.Op)

func (f traceOption) apply(m *VM) { m.trace = f }

// WithTrace registers fn to be called before each instruction is
// dispatched, with the ip it was fetched from and the opcode found
// there. Used by the CLI's -trace flag; nil by default, so tracing
// costs nothing unless requested.
func WithTrace(fn func(ip int, op codegen.Op)) Option { return traceOption(fn) }

// New returns a VM ready to execute code, writing WRITE statement
// output to out.
func New(code []byte, out io.Writer, opts ...Option) *VM {
	m := &VM{code: code, out: out}
	for _, opt := range opts {
		opt.apply(m)
	}
	return m
}

func (m *VM) fail(msg string) error {
	return RuntimeError{IP: m.ip, Message: msg}
}

func (m *VM) push(v uint32) error {
	if m.sp+4 > StackSize {
		return m.fail("evaluation stack overflow")
	}
	binary.BigEndian.PutUint32(m.stack[m.sp:m.sp+4], v)
	m.sp += 4
	return nil
}

func (m *VM) pop() (uint32, error) {
	if m.sp-4 < 0 {
		return 0, m.fail("evaluation stack underflow")
	}
	m.sp -= 4
	return binary.BigEndian.Uint32(m.stack[m.sp : m.sp+4]), nil
}

func (m *VM) readAddr() (uint32, error) {
	if m.ip+4 > len(m.code) {
		return 0, m.fail("truncated immediate operand")
	}
	v := binary.BigEndian.Uint32(m.code[m.ip : m.ip+4])
	m.ip += 4
	return v, nil
}

func (m *VM) loadData(addr uint32) (uint32, error) {
	if int(addr)+4 > DataSize {
		return 0, m.fail(fmt.Sprintf("data address %d out of range", addr))
	}
	return binary.BigEndian.Uint32(m.data[addr : addr+4]), nil
}

func (m *VM) storeData(addr, v uint32) error {
	if int(addr)+4 > DataSize {
		return m.fail(fmt.Sprintf("data address %d out of range", addr))
	}
	binary.BigEndian.PutUint32(m.data[addr:addr+4], v)
	return nil
}

// boolWord converts a Go bool to the VM's canonical truth encoding: 1
// for true, 0 for false.
func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Run executes code from ip 0 until an EXIT opcode, an error, or ctx
// cancellation. It checks ctx between instructions rather than inside
// tight per-byte loops, since a single instruction never blocks.
func (m *VM) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.ip >= len(m.code) {
			return m.fail("fell off the end of the code segment without EXIT")
		}
		ip := m.ip
		op := codegen.Op(m.code[m.ip])
		m.ip++
		if m.trace != nil {
			m.trace(ip, op)
		}

		switch op {
		case codegen.OpExit:
			return nil

		case codegen.OpPush:
			v, err := m.readAddr()
			if err != nil {
				return err
			}
			if err := m.push(v); err != nil {
				return err
			}

		case codegen.OpPop:
			if _, err := m.pop(); err != nil {
				return err
			}

		case codegen.OpStore:
			v, err := m.pop()
			if err != nil {
				return err
			}
			addr, err := m.pop()
			if err != nil {
				return err
			}
			if err := m.storeData(addr, v); err != nil {
				return err
			}

		case codegen.OpLoad:
			addr, err := m.pop()
			if err != nil {
				return err
			}
			v, err := m.loadData(addr)
			if err != nil {
				return err
			}
			if err := m.push(v); err != nil {
				return err
			}

		case codegen.OpAdd, codegen.OpSub, codegen.OpMult, codegen.OpDivi,
			codegen.OpEq, codegen.OpNe, codegen.OpAnd, codegen.OpOr,
			codegen.OpLt, codegen.OpLe, codegen.OpGt, codegen.OpGe:
			if err := m.binOp(op); err != nil {
				return err
			}

		case codegen.OpWrite:
			v, err := m.pop()
			if err != nil {
				return err
			}
			fmt.Fprintf(m.out, "%d\n", int32(v))

		case codegen.OpJTrue, codegen.OpJFalse, codegen.OpJmp:
			target, err := m.pop()
			if err != nil {
				return err
			}
			var cond uint32 = 1
			if op != codegen.OpJmp {
				cond, err = m.pop()
				if err != nil {
					return err
				}
			}
			jump := op == codegen.OpJmp ||
				(op == codegen.OpJTrue && cond != 0) ||
				(op == codegen.OpJFalse && cond == 0)
			if jump {
				if int(target) > len(m.code) {
					return m.fail(fmt.Sprintf("jump target %d out of range", target))
				}
				m.ip = int(target)
			}

		default:
			return m.fail(fmt.Sprintf("unrecognized opcode 0x%02x", byte(op)))
		}
	}
}

// binOp pops the right operand, then the left, computes per op, and
// pushes the result. This pop order — rhs first, lhs second — together
// with the compiler's left-to-right push order, is what gives
// comparisons and subtraction their conventional "lhs <op> rhs"
// surface reading (spec §9 Open Question 1).
func (m *VM) binOp(op codegen.Op) error {
	rhs, err := m.pop()
	if err != nil {
		return err
	}
	lhs, err := m.pop()
	if err != nil {
		return err
	}

	var result uint32
	switch op {
	case codegen.OpAdd:
		result = lhs + rhs
	case codegen.OpSub:
		result = lhs - rhs
	case codegen.OpMult:
		result = lhs * rhs
	case codegen.OpDivi:
		if rhs == 0 {
			return m.fail("division by zero")
		}
		result = uint32(int32(lhs) / int32(rhs))
	case codegen.OpEq:
		result = boolWord(lhs == rhs)
	case codegen.OpNe:
		result = boolWord(lhs != rhs)
	case codegen.OpAnd:
		result = boolWord(lhs != 0 && rhs != 0)
	case codegen.OpOr:
		result = boolWord(lhs != 0 || rhs != 0)
	case codegen.OpLt:
		result = boolWord(int32(lhs) < int32(rhs))
	case codegen.OpLe:
		result = boolWord(int32(lhs) <= int32(rhs))
	case codegen.OpGt:
		result = boolWord(int32(lhs) > int32(rhs))
	case codegen.OpGe:
		result = boolWord(int32(lhs) >= int32(rhs))
	}
	return m.push(result)
}

// Disassemble renders code as one line per instruction, address-first,
// in the same textual style as the source toolchain's core dumper.
func Disassemble(code []byte) []string {
	var lines []string
	ip := 0
	for ip < len(code) {
		op := codegen.Op(code[ip])
		if op.HasImmediate() && ip+5 <= len(code) {
			v := binary.BigEndian.Uint32(code[ip+1 : ip+5])
			lines = append(lines, fmt.Sprintf("%04d  %-6s %d", ip, op, v))
			ip += 5
			continue
		}
		lines = append(lines, fmt.Sprintf("%04d  %-6s", ip, op))
		ip++
	}
	return lines
}
