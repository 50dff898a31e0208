package parser_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rascal/internal/codegen"
	"rascal/internal/parser"
	"rascal/internal/scanner"
	"rascal/internal/symtab"
)

func compile(t *testing.T, src string) (*codegen.Generator, error) {
	t.Helper()
	sym := symtab.New()
	// A source ends with one trailing byte after the final '.', which
	// the scanner treats as its EOF position and never scans.
	sc := scanner.New([]byte(src+"\n"), sym)
	gen := codegen.New()
	p := parser.New(sc, sym, gen)
	err := p.Compile()
	return gen, err
}

func TestEmptyBodyCompilesToJustExit(t *testing.T) {
	gen, err := compile(t, "begin end.")
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(codegen.OpExit)}, gen.Code())
}

func TestFinalByteIsAlwaysExit(t *testing.T) {
	gen, err := compile(t, `var x: integer; begin x := 1; write(x); end.`)
	require.NoError(t, err)
	code := gen.Code()
	assert.Equal(t, byte(codegen.OpExit), code[len(code)-1])
}

func TestCodeLengthMatchesFinalIp(t *testing.T) {
	gen, err := compile(t, `var x: integer; begin x := 1; end.`)
	require.NoError(t, err)
	assert.Equal(t, len(gen.Code()), gen.Ip())
}

func TestDeclarationOrderAssignsAddressesInOrder(t *testing.T) {
	sym := symtab.New()
	sc := scanner.New([]byte("var a, b, c: integer; begin end.\n"), sym)
	gen := codegen.New()
	require.NoError(t, parser.New(sc, sym, gen).Compile())
	assert.Equal(t, uint32(12), gen.DataSize())
	for i, name := range []string{"a", "b", "c"} {
		addr, ok := sym.AddressOf(name)
		assert.True(t, ok, name)
		assert.Equal(t, uint32(4*i), addr, name)
	}
}

func TestMultipleDeclarationGroups(t *testing.T) {
	gen, err := compile(t, `var a: integer; var b: integer; begin end.`)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), gen.DataSize())
}

func TestMultiNameArrayDeclarationRejected(t *testing.T) {
	_, err := compile(t, `var a, b: array[1..3] of integer; begin end.`)
	require.Error(t, err)
	var synErr parser.SyntaxError
	assert.ErrorAs(t, err, &synErr)
}

func TestAssigningUndeclaredIdentifierIsError(t *testing.T) {
	_, err := compile(t, `begin y := 1; end.`)
	require.Error(t, err)
}

func TestScalarAssignToArrayVariableIsError(t *testing.T) {
	_, err := compile(t, `var a: array[1..3] of integer; begin a := 1; end.`)
	require.Error(t, err)
}

func TestArrayAssignToScalarVariableIsError(t *testing.T) {
	_, err := compile(t, `var x: integer; begin x[1] := 1; end.`)
	require.Error(t, err)
}

func TestRealLiteralRejectedInFactor(t *testing.T) {
	_, err := compile(t, `begin write(1.5); end.`)
	require.Error(t, err)
}

func TestMissingDotAtEndIsSyntaxError(t *testing.T) {
	_, err := compile(t, `begin end`)
	require.Error(t, err)
	var synErr parser.SyntaxError
	assert.ErrorAs(t, err, &synErr)
}

func TestTrailingGarbageAfterDotIsSyntaxError(t *testing.T) {
	_, err := compile(t, `begin end. garbage`)
	require.Error(t, err)
}

func TestNestedIfElseIfPatchesEveryHole(t *testing.T) {
	gen, err := compile(t, `var x: integer;
begin
  x := 2;
  if x=1 then begin
    write(1);
  end else begin
    if x=2 then begin
      write(2);
    end else begin
      write(3);
    end;
  end;
end.`)
	require.NoError(t, err)
	code := gen.Code()
	assert.Equal(t, byte(codegen.OpExit), code[len(code)-1])
	assert.Equal(t, len(code), gen.Ip())

	// Every PUSH that feeds a JFALSE/JMP must carry a patched target:
	// not the zero-fill ReserveHole leaves behind (no branch in this
	// program targets ip 0), and inside the code buffer.
	for ip := 0; ip < len(code); {
		op := codegen.Op(code[ip])
		if !op.HasImmediate() {
			ip++
			continue
		}
		next := ip + 5
		if next < len(code) && (codegen.Op(code[next]) == codegen.OpJFalse || codegen.Op(code[next]) == codegen.OpJmp) {
			target := binary.BigEndian.Uint32(code[ip+1 : next])
			assert.NotZero(t, target, "branch at %d left unpatched", next)
			assert.LessOrEqual(t, int(target), len(code), "branch at %d", next)
		}
		ip = next
	}
}

func TestArrayDeclarationSizing(t *testing.T) {
	gen, err := compile(t, `var a: array[1..3] of integer; var b: integer; begin end.`)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), gen.DataSize(), "3 elements * 4 bytes for a, plus 4 bytes for b")
}
