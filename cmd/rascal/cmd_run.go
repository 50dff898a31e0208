package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"rascal/internal/codegen"
	"rascal/internal/compiler"
	"rascal/internal/fileinput"
	"rascal/internal/panicerr"
	"rascal/internal/vm"
)

type runCmd struct {
	timeout time.Duration
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "compile and execute a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile the named source file and execute it, writing each WRITE
  statement's value to stdout, one per line.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&r.timeout, "timeout", 0, "abort execution after this duration (0 disables)")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "run: exactly one source file is required")
		return subcommands.ExitUsageError
	}
	src, loc, err := fileinput.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return subcommands.ExitFailure
	}

	result, err := compiler.Compile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", loc, err)
		return subcommands.ExitFailure
	}
	traceLogf("%s: compiled %d bytes of code, %d bytes of data", loc, len(result.Code), result.DataSize)

	if r.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var opts []vm.Option
	if tracing {
		opts = append(opts, vm.WithTrace(func(ip int, op codegen.Op) {
			traceLogf("%s: %04d %s", loc, ip, op)
		}))
	}
	m := vm.New(result.Code, os.Stdout, opts...)
	runErr := panicerr.Recover("vm", func() error {
		return m.Run(ctx)
	})
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", loc, runErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
