// Package hierarchy builds a process tree from a stream of fork/exec/exit
// events.
package hierarchy

import "github.com/codspeedhq/tracecore/internal/bpfevents"

// Metadata describes one observed process. ExitCode and StopTime are only
// populated once an Exit event for the PID has been seen.
type Metadata struct {
	PID       int32
	Name      string
	StartTime uint64
	ExitCode  *int32
	StopTime  *uint64
}

// Tree is the result of running a stream of events through Builder: a
// root PID, a flat table of every observed process, and a parent-to-
// children index. It's two side tables rather than a pointer tree so
// building it never has to worry about cycles or use-after-free-shaped
// bugs.
type Tree struct {
	RootPID   int32
	Processes map[int32]*Metadata
	Children  map[int32][]int32
}

// Builder accumulates a Tree from a sequence of ProcessEvent records.
type Builder struct {
	tree     Tree
	parentOf map[int32]int32
}

// New creates a Builder rooted at rootPID. The root process is seeded into
// the tree immediately since its own Exec event (if any) arrives after
// tracking has already started.
func New(rootPID int32) *Builder {
	return &Builder{
		tree: Tree{
			RootPID:   rootPID,
			Processes: map[int32]*Metadata{rootPID: {PID: rootPID}},
			Children:  map[int32][]int32{},
		},
		parentOf: map[int32]int32{},
	}
}

// Process folds one event into the tree being built. It never returns an
// error: an Exit for a PID the builder never saw Fork/Exec for is dropped
// silently, without adding any metadata for that PID.
func (b *Builder) Process(e *bpfevents.ProcessEvent) {
	switch e.EventType {
	case bpfevents.ProcessEventFork:
		b.registerParentChild(int32(e.PPID), int32(e.PID))
		if _, ok := b.tree.Processes[int32(e.PID)]; !ok {
			b.tree.Processes[int32(e.PID)] = &Metadata{
				PID:       int32(e.PID),
				StartTime: e.Timestamp,
			}
		}
	case bpfevents.ProcessEventExec:
		meta, ok := b.tree.Processes[int32(e.PID)]
		if !ok {
			meta = &Metadata{PID: int32(e.PID)}
			b.tree.Processes[int32(e.PID)] = meta
		}
		meta.Name = e.Command()
		if meta.StartTime == 0 {
			meta.StartTime = e.Timestamp
		}
	case bpfevents.ProcessEventExit:
		meta, ok := b.tree.Processes[int32(e.PID)]
		if !ok {
			// The process exited before fork propagation ever observed
			// it; drop the event rather than fabricate parentless
			// metadata that would violate the one-parent-per-pid
			// invariant.
			return
		}
		exitCode := e.ExitCode()
		stopTime := e.Timestamp
		meta.ExitCode = &exitCode
		meta.StopTime = &stopTime
	}
}

func (b *Builder) registerParentChild(parent, child int32) {
	if existing, ok := b.parentOf[child]; ok && existing == parent {
		return
	}
	b.parentOf[child] = parent
	b.tree.Children[parent] = append(b.tree.Children[parent], child)
}

// Tree returns the hierarchy accumulated so far. The caller may keep
// calling Process after Tree returns; the returned value shares the
// Builder's underlying maps and observes later updates.
func (b *Builder) Tree() Tree {
	return b.tree
}
