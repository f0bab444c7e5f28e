package walltime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Creator identifies the process that produced a Results file.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

// Instrument names the measurement instrument the benchmarks were
// collected with.
type Instrument struct {
	Type string `json:"type"`
}

// Benchmark is one measured benchmark's result payload.
type Benchmark struct {
	Name      string   `json:"name"`
	URI       string   `json:"uri"`
	Durations []uint64 `json:"durations_ns"`
}

// Results is the JSON document exec-harness writes to
// {profile_folder}/results/{pid}.json.
type Results struct {
	Creator    Creator     `json:"creator"`
	Instrument Instrument  `json:"instrument"`
	Benchmarks []Benchmark `json:"benchmarks"`
}

// NewResults builds a Results document for the current process.
func NewResults(creatorName, creatorVersion string, pid int, benchmarks []Benchmark) Results {
	return Results{
		Creator:    Creator{Name: creatorName, Version: creatorVersion, PID: pid},
		Instrument: Instrument{Type: "walltime"},
		Benchmarks: benchmarks,
	}
}

// SaveToFile writes r to {profileFolder}/results/{pid}.json, creating the
// results directory if needed.
func (r Results) SaveToFile(profileFolder string) error {
	dir := filepath.Join(profileFolder, "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("walltime: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", r.Creator.PID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("walltime: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("walltime: encode results to %s: %w", path, err)
	}
	return nil
}
