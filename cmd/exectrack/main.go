// Command exectrack traces the fork/exec/exit lifecycle of a spawned
// command and writes the resulting ProcessHierarchy artefact once it
// exits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/codspeedhq/tracecore/internal/exectrack"
)

func main() {
	output := flag.String("output", ".", "directory the ProcessHierarchy artefact is written into")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--output <dir>] -- <command> [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Args()
	if len(command) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	objPath, err := defaultObjPath("bpf/process/process.o")
	if err != nil {
		log.Fatalf("exectrack: %v", err)
	}

	cfg := exectrack.Config{
		ObjPath:   objPath,
		Command:   command,
		OutputDir: *output,
	}
	if err := exectrack.Run(cfg); err != nil {
		log.Printf("exectrack: %v", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor mirrors the CLI's exit-code policy: the benchmark's own exit
// code is propagated when that's what failed, and 1 is used for every
// other (internal/setup) failure.
func exitCodeFor(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// defaultObjPath resolves objRelPath relative to the running binary's own
// directory, falling back to the working directory for development runs.
func defaultObjPath(objRelPath string) (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	objPath := filepath.Join(filepath.Dir(execPath), "..", objRelPath)
	if _, err := os.Stat(objPath); err == nil {
		return objPath, nil
	}
	if _, err := os.Stat(objRelPath); err == nil {
		return objRelPath, nil
	}
	return "", fmt.Errorf("BPF object not found: %s", objPath)
}
