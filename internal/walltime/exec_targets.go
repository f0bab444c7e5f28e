package walltime

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExecutionOptions bounds one target's walltime run: every field is
// optional, and durations are already resolved to nanoseconds by the time
// they reach this struct - never duration strings.
type ExecutionOptions struct {
	WarmupTimeNs *uint64 `json:"warmup_time_ns,omitempty"`
	MaxTimeNs    *uint64 `json:"max_time_ns,omitempty"`
	MinTimeNs    *uint64 `json:"min_time_ns,omitempty"`
	MaxRounds    *uint64 `json:"max_rounds,omitempty"`
	MinRounds    *uint64 `json:"min_rounds,omitempty"`
}

// Config converts the JSON-facing options into the Config Perform expects.
func (o ExecutionOptions) Config() Config {
	return Config{
		WarmupTimeNs: o.WarmupTimeNs,
		Min:          RoundOrTime{Rounds: o.MinRounds, TimeNs: o.MinTimeNs},
		Max:          RoundOrTime{Rounds: o.MaxRounds, TimeNs: o.MaxTimeNs},
	}
}

// Target is one entry of an exec-targets JSON file: a command to run and
// the walltime bounds to run it under. Name, if unset, is derived from the
// command by the caller.
type Target struct {
	Name            *string          `json:"name,omitempty"`
	Command         []string         `json:"command"`
	WalltimeOptions ExecutionOptions `json:"walltime_options"`
}

// TargetsFile holds the entries of an exec-targets JSON file.
type TargetsFile struct {
	Targets []Target `json:"targets"`
}

// LoadTargetsFile reads and parses an exec-targets JSON file, whose top
// level is a JSON array of Target entries.
func LoadTargetsFile(path string) (TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TargetsFile{}, fmt.Errorf("walltime: read exec-targets file %s: %w", path, err)
	}
	var tf TargetsFile
	if err := json.Unmarshal(data, &tf.Targets); err != nil {
		return TargetsFile{}, fmt.Errorf("walltime: parse exec-targets file %s: %w", path, err)
	}
	return tf, nil
}
