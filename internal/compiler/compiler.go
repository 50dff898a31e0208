// Package compiler wires the scanner, symbol table, code generator,
// and parser into the single entry point the CLI and golden-fixture
// generator call.
package compiler

import (
	"fmt"

	"rascal/internal/codegen"
	"rascal/internal/parser"
	"rascal/internal/scanner"
	"rascal/internal/symtab"
)

// Result is a finished compilation: the bytecode ready for vm.New, and
// the data-segment size the program declared.
type Result struct {
	Code     []byte
	DataSize uint32
}

// Compile scans, parses, and generates code for src in a single pass,
// returning the first lex or parse error encountered. A returned error
// always wraps a scanner.LexError or parser.SyntaxError (reachable with
// errors.As); callers that want to report diagnostics without a type
// switch can just print it.
func Compile(src []byte) (Result, error) {
	sym := symtab.New()
	sc := scanner.New(src, sym)
	gen := codegen.New()
	p := parser.New(sc, sym, gen)

	if err := p.Compile(); err != nil {
		return Result{}, fmt.Errorf("compile: %w", err)
	}

	return Result{Code: gen.Code(), DataSize: gen.DataSize()}, nil
}
