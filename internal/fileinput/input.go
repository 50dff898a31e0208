// Package fileinput loads a single source file for compilation. It is
// a deliberately thin simplification of the teacher's original
// multi-stream Input/Queue design: a batch compiler reads exactly one
// named file per invocation, so there is no REPL-style queue of
// interleaved readers to drive.
package fileinput

import "os"

// Location names a file for use in diagnostics — the part of the
// teacher's original Location type that survives the simplification
// down to a single source per run.
type Location struct {
	Name string
}

func (loc Location) String() string { return loc.Name }

// Load reads the named file whole, returning it alongside the Location
// callers should attach to any diagnostic they report about it.
func Load(path string) ([]byte, Location, error) {
	src, err := os.ReadFile(path)
	return src, Location{Name: path}, err
}
