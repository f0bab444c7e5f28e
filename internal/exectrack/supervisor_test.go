package exectrack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codspeedhq/tracecore/internal/artifact"
)

// requireTracingEnv skips unless the test can actually load and attach
// BPF programs: running as root, with the out-of-band-compiled object
// present. The pure-Go pieces are covered by unit tests elsewhere.
func requireTracingEnv(t *testing.T, objPath string) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root to load BPF programs")
	}
	if _, err := os.Stat(objPath); err != nil {
		t.Skipf("BPF object not built: %s", objPath)
	}
}

func TestRun_ShellCommandHierarchy(t *testing.T) {
	obj := filepath.Join("..", "..", "bpf", "process", "process.o")
	requireTracingEnv(t, obj)

	dir := t.TempDir()
	err := Run(Config{
		ObjPath:   obj,
		Command:   []string{"/bin/sh", "-c", "/bin/sh -c true && /bin/sh -c true"},
		OutputDir: dir,
	})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.ProcessHierarchy.msgpack"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()
	tree, err := artifact.LoadProcessHierarchy(f)
	require.NoError(t, err)

	require.Contains(t, tree.Processes, tree.RootPID)
	assert.GreaterOrEqual(t, len(tree.Processes), 3)

	// Every non-root process must hang off exactly one parent's child
	// list, and nothing observed here exits non-zero.
	parentsOf := map[int32]int{}
	for parent, children := range tree.Children {
		require.Contains(t, tree.Processes, parent)
		for _, child := range children {
			parentsOf[child]++
		}
	}
	for pid, meta := range tree.Processes {
		if pid != tree.RootPID {
			assert.Equal(t, 1, parentsOf[pid], "pid %d must have exactly one parent", pid)
		}
		if meta.ExitCode != nil {
			assert.Zero(t, *meta.ExitCode, "pid %d (%s)", pid, meta.Name)
		}
		if meta.StopTime != nil {
			assert.GreaterOrEqual(t, *meta.StopTime, meta.StartTime, "pid %d", pid)
		}
	}
}
