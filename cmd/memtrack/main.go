// Command memtrack traces the allocation lifecycle of a spawned benchmark
// command and writes a MemtrackArtifact describing every malloc/free/etc.
// observed while it runs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/codspeedhq/tracecore/internal/memtrack"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s track [--output <dir>] [--ipc-server <name>] <command>\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "track" {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("track", flag.ExitOnError)
	output := fs.String("output", ".", "directory the MemtrackArtifact is written into")
	ipcServer := fs.String("ipc-server", "", "rendezvous socket name to announce the control address on")
	fs.Usage = func() {
		usage()
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	// The command is handed to a shell verbatim, so pipes, &&, and
	// redirections all work without memtrack re-implementing any of it.
	command := strings.Join(fs.Args(), " ")

	objPath, err := defaultObjPath("bpf/alloc/alloc.o")
	if err != nil {
		log.Fatalf("memtrack: %v", err)
	}

	// Catch interrupts so memtrack itself is not killed by one: the signal
	// is only logged, and Run still waits for the benchmark to report its
	// own exit status.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Printf("memtrack: received interrupt, waiting for benchmark to exit")
	}()

	cfg := memtrack.Config{
		ObjPath:     objPath,
		Command:     command,
		OutputDir:   *output,
		IPCSockPath: *ipcServer,
	}
	if err := memtrack.Run(cfg); err != nil {
		log.Printf("memtrack: %v", err)
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
// directory, so the BPF object is found next to the installed binary
// rather than requiring a particular working directory.
func defaultObjPath(objRelPath string) (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	objPath := filepath.Join(filepath.Dir(execPath), "..", objRelPath)
	if _, err := os.Stat(objPath); err == nil {
		return objPath, nil
	}
	// Fall back to a path relative to the working directory, for running
	// straight out of the repo during development.
	if _, err := os.Stat(objRelPath); err == nil {
		return objRelPath, nil
	}
	return "", fmt.Errorf("BPF object not found: %s", objPath)
}
