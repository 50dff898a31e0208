// Command gengolden regenerates the .expected golden files under
// testdata/ by compiling and running every .pas fixture found there.
// Run with: go run scripts/gengolden/main.go testdata
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"

	"rascal/internal/compiler"
	"rascal/internal/vm"
)

func main() {
	flag.Parse()
	dir := "testdata"
	if args := flag.Args(); len(args) > 0 {
		dir = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	matches, err := filepath.Glob(filepath.Join(dir, "*.pas"))
	if err != nil {
		log.Fatalf("glob %s: %v", dir, err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, path := range matches {
		path := path
		eg.Go(func() error { return regenerate(ctx, path) })
	}
	if err := eg.Wait(); err != nil {
		log.Fatalln(err)
	}
}

func regenerate(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	result, err := compiler.Compile(src)
	if err != nil {
		return fmt.Errorf("%s: compile: %w", path, err)
	}

	var out bytes.Buffer
	m := vm.New(result.Code, &out)
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("%s: run: %w", path, err)
	}

	expectedPath := strings.TrimSuffix(path, ".pas") + ".expected"
	if err := os.WriteFile(expectedPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%s: %w", expectedPath, err)
	}
	return nil
}
