// Package walltime implements the warmup-driven round runner exec-harness
// uses for wall-clock benchmarking.
package walltime

import (
	"fmt"
	"log"
	"os/exec"
	"time"
)

// RoundOrTime is the tagged union of ways a caller can bound round
// execution: a fixed round count, a wall-clock budget, or both (in which
// case the stricter of the two derived round counts wins).
type RoundOrTime struct {
	Rounds *uint64
	TimeNs *uint64
}

// roundsFor derives a round count from warmup timing: round up when
// resolving a minimum bound, down for a maximum, and take the stricter of
// the two derived counts when both a round count and a time budget are
// set. avgRoundNs must be > 0 (the caller is expected to have completed
// at least one warmup round).
func (b RoundOrTime) roundsFor(avgRoundNs uint64, roundUp bool) (uint64, bool) {
	if b.Rounds != nil && b.TimeNs != nil {
		fromTime := roundsFromTime(*b.TimeNs, avgRoundNs, roundUp)
		if roundUp {
			if *b.Rounds > fromTime {
				return *b.Rounds, true
			}
			return fromTime, true
		}
		if *b.Rounds < fromTime {
			return *b.Rounds, true
		}
		return fromTime, true
	}
	if b.Rounds != nil {
		return *b.Rounds, true
	}
	if b.TimeNs != nil {
		return roundsFromTime(*b.TimeNs, avgRoundNs, roundUp), true
	}
	return 0, false
}

func roundsFromTime(timeNs, avgRoundNs uint64, roundUp bool) uint64 {
	if roundUp {
		return (timeNs + avgRoundNs - 1) / avgRoundNs
	}
	return timeNs / avgRoundNs
}

// Config bounds one walltime measurement.
type Config struct {
	WarmupTimeNs *uint64
	Min          RoundOrTime
	Max          RoundOrTime

	// Recorder, if set, is told the benchmark completed once all rounds
	// have run.
	Recorder Recorder
}

// Result holds one duration per completed round, in nanoseconds.
type Result struct {
	Durations []uint64
}

// Perform runs name with args repeatedly per cfg, returning one duration
// per completed round: an optional warmup phase establishes an average
// round duration, which is used to translate a time-based bound into a
// round count; min/max are then resolved to concrete round counts
// (falling back to cfg.Max.Rounds with no warmup), and rounds execute
// until either the round count or max wall-clock time is exceeded. uri
// identifies the benchmark to cfg.Recorder once the rounds are done.
func Perform(name string, args []string, uri string, cfg Config) (Result, error) {
	finish := func(durations []uint64) (Result, error) {
		if cfg.Recorder != nil {
			if err := cfg.Recorder.SetExecutedBenchmark(uri); err != nil {
				return Result{}, fmt.Errorf("walltime: record executed benchmark: %w", err)
			}
		}
		return Result{Durations: durations}, nil
	}

	doRound := func() (uint64, error) {
		start := time.Now()
		cmd := exec.Command(name, args...)
		if err := cmd.Run(); err != nil {
			return 0, fmt.Errorf("walltime: round failed: %w", err)
		}
		return uint64(time.Since(start).Nanoseconds()), nil
	}

	var avgRoundNs uint64
	var warmupRounds uint64
	if cfg.WarmupTimeNs != nil && *cfg.WarmupTimeNs > 0 {
		warmupStart := time.Now()
		var total uint64
		for uint64(time.Since(warmupStart).Nanoseconds()) < *cfg.WarmupTimeNs {
			d, err := doRound()
			if err != nil {
				return Result{}, err
			}
			total += d
			warmupRounds++

			// Early stop: a single warmup round already exceeds the max
			// time budget, so no further measurement rounds are needed.
			if warmupRounds == 1 && cfg.Max.TimeNs != nil && d >= *cfg.Max.TimeNs {
				return finish([]uint64{d})
			}
		}
		if warmupRounds > 0 {
			avgRoundNs = total / warmupRounds
		}
	}

	var minRounds, maxRounds uint64
	if avgRoundNs > 0 {
		if r, ok := cfg.Min.roundsFor(avgRoundNs, true); ok {
			minRounds = r
		}
		if r, ok := cfg.Max.roundsFor(avgRoundNs, false); ok {
			maxRounds = r
		}
		if minRounds > 0 && maxRounds > 0 {
			if minRounds > maxRounds {
				log.Printf("walltime: min rounds (%d) exceeds max rounds (%d); using max", minRounds, maxRounds)
				minRounds = maxRounds
			} else {
				maxRounds = (minRounds + maxRounds) / 2
				minRounds = maxRounds
			}
		}
		if minRounds == 0 && maxRounds == 0 {
			return Result{}, fmt.Errorf("walltime: unable to determine number of rounds to perform")
		}
	} else {
		if cfg.Max.Rounds == nil {
			return Result{}, fmt.Errorf("walltime: no warmup and no fixed round count given")
		}
		maxRounds = *cfg.Max.Rounds
	}
	roundsToPerform := maxRounds
	if roundsToPerform == 0 {
		roundsToPerform = minRounds
	}

	var maxTimeNs uint64
	if cfg.Max.TimeNs != nil {
		maxTimeNs = *cfg.Max.TimeNs
	}

	var durations []uint64
	start := time.Now()
	var round uint64
	for round < roundsToPerform {
		if maxTimeNs > 0 && uint64(time.Since(start).Nanoseconds()) > maxTimeNs && round >= minRounds {
			break
		}
		d, err := doRound()
		if err != nil {
			return Result{}, err
		}
		durations = append(durations, d)
		round++
	}

	return finish(durations)
}
