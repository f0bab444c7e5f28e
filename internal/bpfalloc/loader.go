// Package bpfalloc loads and attaches bpf/alloc/alloc.o: the tracepoint
// probes that gate tracking and the uprobes memtrack attaches per
// discovered allocator library.
package bpfalloc

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"golang.org/x/sys/unix"

	"github.com/codspeedhq/tracecore/internal/allocdiscovery"
	"github.com/codspeedhq/tracecore/internal/trackedpids"
)

// alloc.c only needs fork/exit to keep the tracked-PID set current; unlike
// bpf/process/process.c it has no on_sched_process_exec program, since
// allocation accounting doesn't need exec identity.
var tracepoints = []struct{ group, name, prog string }{
	{"sched", "sched_process_fork", "on_sched_process_fork"},
	{"sched", "sched_process_exit", "on_sched_process_exit"},
}

// entryProgName and returnProgName derive the BPF program names alloc.c
// exports for a given allocator symbol, e.g. malloc -> "uprobe_malloc",
// "uretprobe_malloc".
func entryProgName(symbol string) string  { return "uprobe_" + symbol }
func returnProgName(symbol string) string { return "uretprobe_" + symbol }

// Probes owns an attached copy of bpf/alloc/alloc.o.
type Probes struct {
	coll  *ebpf.Collection
	links []link.Link
	rd    *ringbuf.Reader

	TrackedPIDs *trackedpids.Set
}

// Load reads and loads objPath. Call AttachTracepoints and AttachAllocator
// afterward to wire up hook points.
func Load(objPath string) (*Probes, error) {
	if err := bumpMemlockRlimit(); err != nil {
		return nil, err
	}

	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("bpfalloc: load spec %s: %w", objPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("bpfalloc: new collection: %w", err)
	}

	eventsMap := coll.Maps["events"]
	if eventsMap == nil {
		coll.Close()
		return nil, fmt.Errorf("bpfalloc: object %s has no events ring buffer map", objPath)
	}
	rd, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("bpfalloc: open ring buffer reader: %w", err)
	}

	trackedMap := coll.Maps["tracked_pids"]
	if trackedMap == nil {
		rd.Close()
		coll.Close()
		return nil, fmt.Errorf("bpfalloc: object %s has no tracked_pids map", objPath)
	}

	return &Probes{
		coll:        coll,
		rd:          rd,
		TrackedPIDs: trackedpids.New(trackedMap),
	}, nil
}

// AttachTracepoints attaches the fork/exit probes that keep the
// tracked-PID set current as children of the root process appear and go.
func (p *Probes) AttachTracepoints() error {
	for _, tp := range tracepoints {
		prog := p.coll.Programs[tp.prog]
		if prog == nil {
			return fmt.Errorf("bpfalloc: missing program %q", tp.prog)
		}
		l, err := link.Tracepoint(tp.group, tp.name, prog, nil)
		if err != nil {
			return fmt.Errorf("bpfalloc: attach %s:%s: %w", tp.group, tp.name, err)
		}
		p.links = append(p.links, l)
	}
	return nil
}

// AttachAllocator uprobes every entry symbol of lib.Kind in the library at
// lib.Path, and uretprobes the subset that needs a return value.
func (p *Probes) AttachAllocator(lib allocdiscovery.Lib) error {
	ex, err := link.OpenExecutable(lib.Path)
	if err != nil {
		return fmt.Errorf("bpfalloc: open executable %s: %w", lib.Path, err)
	}

	returnSyms := make(map[string]struct{})
	for _, s := range lib.Kind.ReturnSymbols() {
		returnSyms[s] = struct{}{}
	}

	for _, sym := range lib.Kind.Symbols() {
		entryProg := p.coll.Programs[entryProgName(sym)]
		if entryProg == nil {
			return fmt.Errorf("bpfalloc: missing entry program for symbol %s", sym)
		}
		l, err := ex.Uprobe(sym, entryProg, nil)
		if err != nil {
			return fmt.Errorf("bpfalloc: attach uprobe %s in %s: %w", sym, lib.Path, err)
		}
		p.links = append(p.links, l)

		if _, needsReturn := returnSyms[sym]; !needsReturn {
			continue
		}
		retProg := p.coll.Programs[returnProgName(sym)]
		if retProg == nil {
			return fmt.Errorf("bpfalloc: missing return program for symbol %s", sym)
		}
		rl, err := ex.Uretprobe(sym, retProg, nil)
		if err != nil {
			return fmt.Errorf("bpfalloc: attach uretprobe %s in %s: %w", sym, lib.Path, err)
		}
		p.links = append(p.links, rl)
	}
	return nil
}

// Reader returns the ring buffer reader events.AllocEvent records arrive on.
func (p *Probes) Reader() *ringbuf.Reader {
	return p.rd
}

// SetEnabled flips the enabled flag the alloc uprobes check before
// emitting an event, backing memtrack's Enable/Disable IPC commands.
func (p *Probes) SetEnabled(enabled bool) error {
	m := p.coll.Maps["enabled_flag"]
	if m == nil {
		return fmt.Errorf("bpfalloc: object has no enabled_flag map")
	}
	var key uint32
	var value uint8
	if enabled {
		value = 1
	}
	if err := m.Update(key, value, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("bpfalloc: set enabled=%v: %w", enabled, err)
	}
	return nil
}

func (p *Probes) Close() error {
	var firstErr error
	for _, l := range p.links {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.rd.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	p.coll.Close()
	return firstErr
}

func bumpMemlockRlimit() error {
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{
		Cur: unix.RLIM_INFINITY,
		Max: unix.RLIM_INFINITY,
	}); err != nil {
		return fmt.Errorf("bpfalloc: raise RLIMIT_MEMLOCK: %w", err)
	}
	return nil
}
