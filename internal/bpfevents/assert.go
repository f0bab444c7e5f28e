package bpfevents

import "unsafe"

// init asserts that ProcessEvent and AllocEvent match the layouts the C
// probes write into their ring buffers. Go has no compile-time
// static_assert; panicking in init() is the closest analogue, and it fires
// at program start rather than silently corrupting decodes.
func init() {
	var pe ProcessEvent
	assertSize("ProcessEvent", unsafe.Sizeof(pe), 48)
	assertOffset("ProcessEvent.Timestamp", unsafe.Offsetof(pe.Timestamp), 8)
	assertOffset("ProcessEvent.PID", unsafe.Offsetof(pe.PID), 16)
	assertOffset("ProcessEvent.TID", unsafe.Offsetof(pe.TID), 20)
	assertOffset("ProcessEvent.PPID", unsafe.Offsetof(pe.PPID), 24)
	assertOffset("ProcessEvent.Comm", unsafe.Offsetof(pe.Comm), 28)

	var ae AllocEvent
	assertSize("AllocEvent", unsafe.Sizeof(ae), 40)
	assertOffset("AllocEvent.Timestamp", unsafe.Offsetof(ae.Timestamp), 8)
	assertOffset("AllocEvent.PID", unsafe.Offsetof(ae.PID), 16)
	assertOffset("AllocEvent.TID", unsafe.Offsetof(ae.TID), 20)
	assertOffset("AllocEvent.Addr", unsafe.Offsetof(ae.Addr), 24)
	assertOffset("AllocEvent.Size", unsafe.Offsetof(ae.Size), 32)
}

func assertSize(name string, got, want uintptr) {
	if got != want {
		panic("bpfevents: " + name + " size mismatch with C layout")
	}
}

func assertOffset(name string, got, want uintptr) {
	if got != want {
		panic("bpfevents: " + name + " offset mismatch with C layout")
	}
}
