package vm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rascal/internal/codegen"
	"rascal/internal/vm"
)

func assemble(t *testing.T, build func(g *codegen.Generator)) []byte {
	t.Helper()
	g := codegen.New()
	build(g)
	g.EmitOp(codegen.OpExit)
	return g.Code()
}

func runAndCapture(t *testing.T, code []byte) string {
	t.Helper()
	var out bytes.Buffer
	m := vm.New(code, &out)
	require.NoError(t, m.Run(context.Background()))
	return out.String()
}

func TestPushAddWrite(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(2)
		g.EmitOp(codegen.OpPush)
		g.EmitU32(3)
		g.EmitOp(codegen.OpAdd)
		g.EmitOp(codegen.OpWrite)
	})
	assert.Equal(t, "5\n", runAndCapture(t, code))
}

func TestSubtractionDoesNotCommute(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(10)
		g.EmitOp(codegen.OpPush)
		g.EmitU32(3)
		g.EmitOp(codegen.OpSub)
		g.EmitOp(codegen.OpWrite)
	})
	assert.Equal(t, "7\n", runAndCapture(t, code))
}

func TestStoreThenLoad(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(0) // address
		g.EmitOp(codegen.OpPush)
		g.EmitU32(99) // value
		g.EmitOp(codegen.OpStore)

		g.EmitOp(codegen.OpPush)
		g.EmitU32(0)
		g.EmitOp(codegen.OpLoad)
		g.EmitOp(codegen.OpWrite)
	})
	assert.Equal(t, "99\n", runAndCapture(t, code))
}

func TestUninitializedDataIsZero(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(40)
		g.EmitOp(codegen.OpLoad)
		g.EmitOp(codegen.OpWrite)
	})
	assert.Equal(t, "0\n", runAndCapture(t, code))
}

func TestComparisonOrientation(t *testing.T) {
	// 3 < 5 should push 1 (true), with 3 pushed first (lhs) and 5 second (rhs).
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(3)
		g.EmitOp(codegen.OpPush)
		g.EmitU32(5)
		g.EmitOp(codegen.OpLt)
		g.EmitOp(codegen.OpWrite)
	})
	assert.Equal(t, "1\n", runAndCapture(t, code))
}

func TestJmpSkipsForward(t *testing.T) {
	g := codegen.New()
	g.EmitOp(codegen.OpPush)
	hole := g.ReserveHole()
	g.EmitOp(codegen.OpJmp)

	// dead code that must be skipped
	g.EmitOp(codegen.OpPush)
	g.EmitU32(111)
	g.EmitOp(codegen.OpWrite)

	g.Patch(hole, uint32(g.Ip()))
	g.EmitOp(codegen.OpPush)
	g.EmitU32(222)
	g.EmitOp(codegen.OpWrite)
	g.EmitOp(codegen.OpExit)

	assert.Equal(t, "222\n", runAndCapture(t, g.Code()))
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(1)
		g.EmitOp(codegen.OpPush)
		g.EmitU32(0)
		g.EmitOp(codegen.OpDivi)
	})
	var out bytes.Buffer
	m := vm.New(code, &out)
	err := m.Run(context.Background())
	require.Error(t, err)
	var rerr vm.RuntimeError
	assert.ErrorAs(t, err, &rerr)
}

func TestStackUnderflowIsRuntimeError(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpAdd)
	})
	m := vm.New(code, &bytes.Buffer{})
	err := m.Run(context.Background())
	require.Error(t, err)
}

func TestWithTraceReceivesOneCallPerInstruction(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(2)
		g.EmitOp(codegen.OpPush)
		g.EmitU32(3)
		g.EmitOp(codegen.OpAdd)
		g.EmitOp(codegen.OpWrite)
	})

	var ops []codegen.Op
	m := vm.New(code, &bytes.Buffer{}, vm.WithTrace(func(ip int, op codegen.Op) {
		ops = append(ops, op)
	}))
	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, []codegen.Op{
		codegen.OpPush, codegen.OpPush, codegen.OpAdd, codegen.OpWrite, codegen.OpExit,
	}, ops)
}

func TestContextCancellationStopsExecution(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		label := g.Ip()
		g.EmitOp(codegen.OpPush)
		g.EmitU32(uint32(label))
		g.EmitOp(codegen.OpJmp)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := vm.New(code, &bytes.Buffer{})
	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisassemble(t *testing.T) {
	code := assemble(t, func(g *codegen.Generator) {
		g.EmitOp(codegen.OpPush)
		g.EmitU32(7)
		g.EmitOp(codegen.OpWrite)
	})
	lines := vm.Disassemble(code)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PUSH")
	assert.Contains(t, lines[0], "7")
	assert.Contains(t, lines[1], "WRITE")
	assert.Contains(t, lines[2], "EXIT")
}
