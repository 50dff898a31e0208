// Command rascal compiles and executes source files written in the
// small Pascal-subset language implemented by this module's internal
// packages.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"rascal/internal/logio"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&dumpCmd{}, "")

	var trace bool
	flag.BoolVar(&trace, "trace", false, "enable trace logging to stderr")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)

	traceLogf = func(string, ...interface{}) {}
	if trace {
		traceLogf = log.Leveledf("TRACE")
		tracing = true
	}

	ctx := context.Background()
	status := subcommands.Execute(ctx)

	code := log.ExitCode()
	if status != subcommands.ExitSuccess && code == 0 {
		code = int(status)
	}
	os.Exit(code)
}

// traceLogf and tracing are wired to the global -trace flag by main
// and consulted by the run subcommand, since subcommands.Execute doesn't
// thread per-run state through Execute's arguments.
var (
	traceLogf = func(string, ...interface{}) {}
	tracing   bool
)
