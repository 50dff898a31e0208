package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"rascal/internal/compiler"
	"rascal/internal/fileinput"
	"rascal/internal/vm"
)

type dumpCmd struct {
	hex bool
}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "compile a source file and print its disassembly" }
func (*dumpCmd) Usage() string {
	return `dump <file>:
  Compile the named source file and print one disassembled instruction
  per line, without executing it.
`
}

func (d *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.hex, "hex", false, "print the raw code segment as hex before the disassembly")
}

func (d *dumpCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "dump: exactly one source file is required")
		return subcommands.ExitUsageError
	}
	src, loc, err := fileinput.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dump: %v\n", err)
		return subcommands.ExitFailure
	}

	result, err := compiler.Compile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", loc, err)
		return subcommands.ExitFailure
	}

	if d.hex {
		fmt.Printf("% x\n", result.Code)
	}
	for _, line := range vm.Disassemble(result.Code) {
		fmt.Println(line)
	}
	fmt.Printf("; data segment: %d bytes\n", result.DataSize)
	return subcommands.ExitSuccess
}
