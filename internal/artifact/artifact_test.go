package artifact

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codspeedhq/tracecore/internal/bpfevents"
	"github.com/codspeedhq/tracecore/internal/hierarchy"
)

func TestMemtrackArtifact_StreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	a := NewMemtrackArtifact(&buf)

	want := []MemtrackEvent{
		MemtrackEventFromRaw(bpfevents.AllocEvent{EventType: bpfevents.AllocEventMalloc, PID: 1, TID: 1, Timestamp: 1, Addr: 0x1000, Size: 64}),
		MemtrackEventFromRaw(bpfevents.AllocEvent{EventType: bpfevents.AllocEventFree, PID: 1, TID: 1, Timestamp: 2, Addr: 0x1000}),
	}
	for _, e := range want {
		require.NoError(t, a.WriteEvent(e))
	}

	stream := DecodeMemtrackStream(&buf)
	var got []MemtrackEvent
	for {
		e, ok, err := stream.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e)
	}
	assert.Equal(t, want, got)
}

func TestProcessHierarchy_SaveLoadRoundTrip(t *testing.T) {
	b := hierarchy.New(10)
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExec, PID: 10, Timestamp: 1, Comm: commOf("bench")})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventFork, PID: 11, PPID: 10, Timestamp: 2})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExec, PID: 11, Timestamp: 3, Comm: commOf("child")})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExit, PID: 11, Timestamp: 4, TID: 0})

	art := FromTree(b.Tree())
	var buf bytes.Buffer
	require.NoError(t, art.Save(&buf))

	got, err := LoadProcessHierarchy(&buf)
	require.NoError(t, err)
	assert.Equal(t, &art, got)
}

func commOf(name string) [16]byte {
	var c [16]byte
	copy(c[:], name)
	return c
}

func TestFileName(t *testing.T) {
	a := &MemtrackArtifact{}
	pid := int32(42)
	assert.Equal(t, "42.MemtrackArtifact.msgpack", FileName(a, &pid))

	h := &ProcessHierarchyArtifact{}
	assert.Equal(t, "ProcessHierarchy.msgpack", FileName(h, nil))
	assert.Equal(t, "42.ProcessHierarchy.msgpack", FileName(h, &pid))
}

// BenchmarkMemtrackArtifact_WriteEvent guards the per-event overhead of
// the streaming encoder: a million events must serialize in well under a
// second.
func BenchmarkMemtrackArtifact_WriteEvent(b *testing.B) {
	a := NewMemtrackArtifact(io.Discard)
	e := MemtrackEventFromRaw(bpfevents.AllocEvent{
		EventType: bpfevents.AllocEventMalloc,
		PID:       1,
		TID:       1,
		Timestamp: 42,
		Addr:      0xdeadbeef,
		Size:      1024,
	})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := a.WriteEvent(e); err != nil {
			b.Fatal(err)
		}
	}
}
