// Package memtrack implements the allocation-tracing supervisor: discover
// allocator libraries, attach uprobes, spawn the target command, and drain
// its allocation events to a streaming msgpack artefact.
package memtrack

import (
	"fmt"
	"sync"

	"github.com/codspeedhq/tracecore/internal/allocdiscovery"
	"github.com/codspeedhq/tracecore/internal/bpfalloc"
)

// Tracker owns the attached BPF probes for one traced process tree. It
// satisfies internal/ipc.Handler so the control plane can Enable/Disable
// it directly.
type Tracker struct {
	mu     sync.Mutex
	probes *bpfalloc.Probes
}

// New loads objPath, attaches the fork/exit tracepoints, discovers
// allocator libraries (dynamic pass, then a static pass over any build
// directories found above the working directory), and uprobes every
// discovered library.
func New(objPath string) (*Tracker, error) {
	probes, err := bpfalloc.Load(objPath)
	if err != nil {
		return nil, err
	}
	if err := probes.AttachTracepoints(); err != nil {
		probes.Close()
		return nil, err
	}

	libs, err := discoverAllocators()
	if err != nil {
		probes.Close()
		return nil, err
	}
	for _, lib := range libs {
		if err := probes.AttachAllocator(lib); err != nil {
			probes.Close()
			return nil, fmt.Errorf("memtrack: attach allocator %s at %s: %w", lib.Kind, lib.Path, err)
		}
	}

	return &Tracker{probes: probes}, nil
}

func discoverAllocators() ([]allocdiscovery.Lib, error) {
	dynamic, err := allocdiscovery.FindDynamic()
	if err != nil {
		return nil, err
	}

	libs := dynamic
	for _, dir := range allocdiscovery.FindBuildDirs(".") {
		binaries, err := allocdiscovery.FindBinaries(dir)
		if err != nil {
			continue
		}
		for _, bin := range binaries {
			if lib, ok, err := allocdiscovery.FindStaticallyLinked(bin); err == nil && ok {
				libs = append(libs, lib)
			}
		}
	}
	return libs, nil
}

// Track starts tracking pid by adding it to the tracked-PID map. The
// caller is expected to have already started an internal/ringpoll.Poller
// against t.Probes().Reader(), so no event emitted for pid is left
// sitting in the ring buffer unobserved.
func (t *Tracker) Track(pid int32) error {
	return t.probes.TrackedPIDs.Insert(pid)
}

// Enable turns on allocation-event emission.
func (t *Tracker) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probes.SetEnabled(true)
}

// Disable turns allocation-event emission back off.
func (t *Tracker) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probes.SetEnabled(false)
}

// Ping is a no-op used to confirm the control session is alive.
func (t *Tracker) Ping() error { return nil }

// Probes exposes the underlying BPF probes for the supervisor to start a
// poller against and eventually close.
func (t *Tracker) Probes() *bpfalloc.Probes { return t.probes }

// Close releases every attached probe.
func (t *Tracker) Close() error {
	return t.probes.Close()
}
