// Package exectrack implements the process-hierarchy supervisor: trace
// fork/exec/exit under a spawned root process and save the resulting tree
// as a ProcessHierarchy artefact.
package exectrack

import (
	"github.com/codspeedhq/tracecore/internal/bpfprocess"
)

// Tracker owns the attached process-tracepoint probes for one traced tree.
type Tracker struct {
	probes *bpfprocess.Probes
}

// New loads objPath and attaches its tracepoints.
func New(objPath string) (*Tracker, error) {
	probes, err := bpfprocess.Load(objPath)
	if err != nil {
		return nil, err
	}
	if err := probes.Attach(); err != nil {
		probes.Close()
		return nil, err
	}
	return &Tracker{probes: probes}, nil
}

// Track adds pid to the tracked-PID set, so its descendants start being
// reported too.
func (t *Tracker) Track(pid int32) error {
	return t.probes.TrackedPIDs.Insert(pid)
}

// Probes exposes the underlying BPF probes for the supervisor to poll and
// eventually close.
func (t *Tracker) Probes() *bpfprocess.Probes { return t.probes }

// Close releases every attached probe.
func (t *Tracker) Close() error {
	return t.probes.Close()
}
