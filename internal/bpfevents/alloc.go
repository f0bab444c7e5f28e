package bpfevents

// AllocEventType mirrors the event_type field written by bpf/alloc/alloc.c.
type AllocEventType uint8

const (
	AllocEventMalloc AllocEventType = iota
	AllocEventFree
	AllocEventCalloc
	AllocEventRealloc
	AllocEventAlignedAlloc
	AllocEventMmap
	AllocEventMunmap
	AllocEventBrk
)

func (t AllocEventType) String() string {
	switch t {
	case AllocEventMalloc:
		return "malloc"
	case AllocEventFree:
		return "free"
	case AllocEventCalloc:
		return "calloc"
	case AllocEventRealloc:
		return "realloc"
	case AllocEventAlignedAlloc:
		return "aligned_alloc"
	case AllocEventMmap:
		return "mmap"
	case AllocEventMunmap:
		return "munmap"
	case AllocEventBrk:
		return "brk"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the codes bpf/alloc/alloc.c emits. An
// invalid code coming off a live ring buffer is a hard error for the
// consumer, not something to coerce.
func (t AllocEventType) Valid() bool {
	return t <= AllocEventBrk
}

// HasSize reports whether Size carries meaningful data for this event type.
// Free only needs the address being released; Munmap carries the unmapped
// length in Size.
func (t AllocEventType) HasSize() bool {
	switch t {
	case AllocEventFree:
		return false
	default:
		return true
	}
}

// AllocEvent is the raw record read off the memtrack ring buffer. Field
// order and widths match the C struct alloc_event; see the init()
// assertions in assert.go.
type AllocEvent struct {
	EventType AllocEventType
	_         [7]byte
	Timestamp uint64
	PID       uint32
	TID       uint32
	Addr      uint64
	Size      uint64
}
