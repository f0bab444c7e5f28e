// Package bpfevents defines the fixed-layout records emitted by the C probes
// in bpf/process and bpf/alloc, and the Go-side assertions that keep the Go
// struct layout in lockstep with the C one.
package bpfevents

import (
	"bytes"
	"strings"
)

// ProcessEventType mirrors the event_type field written by bpf/process/process.c.
type ProcessEventType uint8

const (
	ProcessEventFork ProcessEventType = iota
	ProcessEventExec
	ProcessEventExit
)

func (t ProcessEventType) String() string {
	switch t {
	case ProcessEventFork:
		return "fork"
	case ProcessEventExec:
		return "exec"
	case ProcessEventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the codes bpf/process/process.c
// emits. An invalid code coming off a live ring buffer is a hard error
// for the consumer, not something to coerce.
func (t ProcessEventType) Valid() bool {
	return t <= ProcessEventExit
}

// ProcessEvent is the raw record read off the process ring buffer. Field
// order and widths match the C struct process_event exactly; see the
// init() assertions in assert.go. On a ProcessEventExit record TID does not carry
// a real thread ID - process.c repurposes that slot to carry the exiting
// process's exit code instead; use ExitCode to read it.
type ProcessEvent struct {
	EventType ProcessEventType
	_         [7]byte // padding to align Timestamp on an 8-byte boundary
	Timestamp uint64
	PID       uint32
	TID       uint32
	PPID      uint32
	Comm      [16]byte
}

// ExitCode reinterprets the TID slot as a signed exit code. Only
// meaningful when EventType is ProcessEventExit.
func (e *ProcessEvent) ExitCode() int32 {
	return int32(e.TID)
}

// Command returns Comm with the trailing NUL padding trimmed.
func (e *ProcessEvent) Command() string {
	return commString(e.Comm[:])
}

// commString trims the NUL padding a kernel-side fixed-size char[] leaves
// behind and discards any byte sequence that isn't valid UTF-8, the way
// comm fields occasionally are when a process renames itself mid-flight.
func commString(b []byte) string {
	return strings.ToValidUTF8(string(bytes.TrimRight(b, "\x00")), "")
}
