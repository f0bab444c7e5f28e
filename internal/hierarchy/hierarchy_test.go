package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codspeedhq/tracecore/internal/bpfevents"
)

func TestBuilder_ForkExecExit(t *testing.T) {
	b := New(100)

	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventFork, PID: 100, PPID: 1, Timestamp: 1})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExec, PID: 100, Timestamp: 2, Comm: commOf("bench")})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventFork, PID: 101, PPID: 100, Timestamp: 3})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExec, PID: 101, Timestamp: 4, Comm: commOf("child")})
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExit, PID: 101, Timestamp: 5, TID: 0})

	tree := b.Tree()
	require.Equal(t, int32(100), tree.RootPID)

	require.Contains(t, tree.Processes, int32(100))
	assert.Equal(t, "bench", tree.Processes[100].Name)

	require.Contains(t, tree.Processes, int32(101))
	child := tree.Processes[101]
	assert.Equal(t, "child", child.Name)
	require.NotNil(t, child.ExitCode)
	assert.Equal(t, int32(0), *child.ExitCode)
	require.NotNil(t, child.StopTime)
	assert.Equal(t, uint64(5), *child.StopTime)

	assert.Equal(t, []int32{101}, tree.Children[100])
}

func TestBuilder_ExitWithoutPriorEventIsDroppedSilently(t *testing.T) {
	b := New(1)
	b.Process(&bpfevents.ProcessEvent{EventType: bpfevents.ProcessEventExit, PID: 999, Timestamp: 9, TID: 1})

	tree := b.Tree()
	assert.NotContains(t, tree.Processes, int32(999))
}

func commOf(name string) [16]byte {
	var c [16]byte
	copy(c[:], name)
	return c
}
