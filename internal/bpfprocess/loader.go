// Package bpfprocess loads and attaches bpf/process/process.o, the
// tracepoint probes exectrack rides on.
package bpfprocess

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"golang.org/x/sys/unix"

	"github.com/codspeedhq/tracecore/internal/trackedpids"
)

// tracepoints lists the sched tracepoints process.c attaches to, paired
// with the BPF program name each is expected to export.
var tracepoints = []struct{ group, name, prog string }{
	{"sched", "sched_process_fork", "on_sched_process_fork"},
	{"sched", "sched_process_exec", "on_sched_process_exec"},
	{"sched", "sched_process_exit", "on_sched_process_exit"},
}

// Probes owns an attached copy of bpf/process/process.o: the loaded
// collection, its tracepoint links, and the ring buffer reader events
// arrive on.
type Probes struct {
	coll  *ebpf.Collection
	links []link.Link
	rd    *ringbuf.Reader

	TrackedPIDs *trackedpids.Set
}

// Load reads and loads objPath, but does not attach anything yet - call
// Attach once the collection is loaded.
func Load(objPath string) (*Probes, error) {
	if err := bumpMemlockRlimit(); err != nil {
		return nil, err
	}

	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("bpfprocess: load spec %s: %w", objPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("bpfprocess: new collection: %w", err)
	}

	eventsMap := coll.Maps["events"]
	if eventsMap == nil {
		coll.Close()
		return nil, fmt.Errorf("bpfprocess: object %s has no events ring buffer map", objPath)
	}
	rd, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("bpfprocess: open ring buffer reader: %w", err)
	}

	trackedMap := coll.Maps["tracked_pids"]
	if trackedMap == nil {
		rd.Close()
		coll.Close()
		return nil, fmt.Errorf("bpfprocess: object %s has no tracked_pids map", objPath)
	}

	return &Probes{
		coll:        coll,
		rd:          rd,
		TrackedPIDs: trackedpids.New(trackedMap),
	}, nil
}

// Attach attaches every tracepoint program to its kernel hook point.
func (p *Probes) Attach() error {
	for _, tp := range tracepoints {
		prog := p.coll.Programs[tp.prog]
		if prog == nil {
			return fmt.Errorf("bpfprocess: missing program %q", tp.prog)
		}
		l, err := link.Tracepoint(tp.group, tp.name, prog, nil)
		if err != nil {
			return fmt.Errorf("bpfprocess: attach %s:%s: %w", tp.group, tp.name, err)
		}
		p.links = append(p.links, l)
	}
	return nil
}

// Reader returns the ring buffer reader events.ProcessEvent records arrive
// on, for internal/ringpoll to drain.
func (p *Probes) Reader() *ringbuf.Reader {
	return p.rd
}

// Close detaches every link, closes the ring buffer reader, and unloads
// the collection.
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
		return fmt.Errorf("bpfprocess: raise RLIMIT_MEMLOCK: %w", err)
	}
	return nil
}
