// Command exec-harness measures the wall-clock time of a benchmark command
// across a fixed number of rounds (or, per entry of an exec-targets file,
// the bounds that entry gives) and writes the result as a walltime Results
// JSON document.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/codspeedhq/tracecore/internal/envconfig"
	"github.com/codspeedhq/tracecore/internal/walltime"
)

// defaultRounds is the fixed round count used when no exec-targets file
// overrides it.
const defaultRounds uint64 = 10

func main() {
	name := flag.String("name", "", "benchmark name; defaults to the basename of the command")
	targetsFile := flag.String("targets", "", "optional exec-targets JSON file describing multiple benchmarks")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--name <bench_name>] -- <command> [args...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "   or: %s --targets <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	pid := os.Getpid()
	profileFolder := envconfig.Getenv("CODSPEED_PROFILE_FOLDER", "./.codspeed")

	var benchmarks []walltime.Benchmark
	if *targetsFile != "" {
		targets, err := walltime.LoadTargetsFile(*targetsFile)
		if err != nil {
			log.Fatalf("exec-harness: %v", err)
		}
		for _, t := range targets.Targets {
			b, err := runTarget(t)
			if err != nil {
				log.Fatalf("exec-harness: %v", err)
			}
			benchmarks = append(benchmarks, b)
		}
	} else {
		command := flag.Args()
		if len(command) == 0 {
			flag.Usage()
			os.Exit(1)
		}
		benchName := *name
		if benchName == "" {
			benchName = filepath.Base(command[0])
		}
		b, err := runCommand(benchName, command, walltime.Config{Max: walltime.RoundOrTime{Rounds: uint64Ptr(defaultRounds)}})
		if err != nil {
			log.Fatalf("exec-harness: %v", err)
		}
		benchmarks = append(benchmarks, b)
	}

	results := walltime.NewResults("exec-harness", version, pid, benchmarks)
	if err := results.SaveToFile(profileFolder); err != nil {
		log.Fatalf("exec-harness: %v", err)
	}
}

// version is the creator version embedded in the results file; this
// binary has no release process of its own yet, so it's a constant
// placeholder.
const version = "0.1.0"

// runTarget resolves one exec-targets entry's name and bounds and runs it.
func runTarget(t walltime.Target) (walltime.Benchmark, error) {
	name := ""
	if t.Name != nil {
		name = *t.Name
	} else if len(t.Command) > 0 {
		name = filepath.Base(t.Command[0])
	}
	cfg := t.WalltimeOptions.Config()
	if cfg.Max.Rounds == nil && cfg.Max.TimeNs == nil && cfg.WarmupTimeNs == nil {
		cfg.Max.Rounds = uint64Ptr(defaultRounds)
	}
	return runCommand(name, t.Command, cfg)
}

// runCommand performs the rounds for one benchmark and builds its
// Benchmark result, deriving the URI and applying name truncation exactly
// as GenerateNameAndURI does.
func runCommand(name string, command []string, cfg walltime.Config) (walltime.Benchmark, error) {
	truncatedName, uri, truncated := walltime.GenerateNameAndURI(name)
	if truncated {
		log.Printf("exec-harness: benchmark name %q truncated to %d characters", name, len(truncatedName))
	}

	// CODSPEED_BENCH_URI identifies this benchmark to the instrumentation
	// library the preload path injects into the child; exec.Command
	// inherits the parent's environment by default, so setting it here
	// before spawning is enough for every round to see it.
	if err := os.Setenv("CODSPEED_BENCH_URI", uri); err != nil {
		return walltime.Benchmark{}, fmt.Errorf("set CODSPEED_BENCH_URI: %w", err)
	}

	// The Recorder stand-in marks the benchmark executed once its rounds
	// complete; the real instrumentation layer is an external collaborator
	// that would be substituted here.
	cfg.Recorder = logRecorder{}
	result, err := walltime.Perform(command[0], command[1:], uri, cfg)
	if err != nil {
		return walltime.Benchmark{}, fmt.Errorf("run %q: %w", name, err)
	}

	return walltime.Benchmark{
		Name:      truncatedName,
		URI:       uri,
		Durations: result.Durations,
	}, nil
}

// logRecorder satisfies walltime.Recorder by announcing completion in the
// log, standing in for the external instrumentation hook.
type logRecorder struct{}

func (logRecorder) SetExecutedBenchmark(uri string) error {
	log.Printf("exec-harness: %s complete", uri)
	return nil
}

func uint64Ptr(v uint64) *uint64 { return &v }
