// Package trackedpids wraps the BPF map that gates which PIDs a probe
// emits events for.
package trackedpids

import (
	"encoding/binary"
	"fmt"

	"github.com/cilium/ebpf"
)

// present is the value stored for every tracked key; the map only encodes
// set membership, so its content never needs to change.
var present = [1]byte{1}

// Set is a thin wrapper over a BPF hash map keyed by PID, used by the
// kernel probes to decide whether to emit an event for a given process.
// User space only ever inserts: children are added by the fork
// tracepoint, and the exit tracepoint deletes a PID once its process is
// gone, so no removal path is needed on this side.
type Set struct {
	m *ebpf.Map
}

// New wraps an already-loaded BPF map. The map must have been created with
// a 4-byte key (PID) and a 1-byte value, matching bpf/process/process.c's
// tracked_pids map definition.
func New(m *ebpf.Map) *Set {
	return &Set{m: m}
}

// Insert adds pid to the tracked set, so probes start emitting events for
// it (and, transitively, for children forked from it).
func (s *Set) Insert(pid int32) error {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], uint32(pid))
	if err := s.m.Update(key, present, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("trackedpids: insert pid %d: %w", pid, err)
	}
	return nil
}
