package artifact

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/codspeedhq/tracecore/internal/hierarchy"
)

// ProcessMetadata is the wire shape of hierarchy.Metadata.
type ProcessMetadata struct {
	PID       int32   `msgpack:"pid"`
	Name      string  `msgpack:"name"`
	StartTime uint64  `msgpack:"start_time"`
	ExitCode  *int32  `msgpack:"exit_code,omitempty"`
	StopTime  *uint64 `msgpack:"stop_time,omitempty"`
}

// ProcessHierarchyArtifact is the single-shot artefact written by exectrack
// once a supervised root process and all its descendants have exited;
// exectrack names the file after the root PID.
type ProcessHierarchyArtifact struct {
	RootPID   int32                     `msgpack:"root_pid"`
	Processes map[int32]ProcessMetadata `msgpack:"processes"`
	Children  map[int32][]int32         `msgpack:"children"`
}

// FromTree converts the in-memory hierarchy built during tracking into the
// artefact's wire shape.
func FromTree(t hierarchy.Tree) ProcessHierarchyArtifact {
	processes := make(map[int32]ProcessMetadata, len(t.Processes))
	for pid, m := range t.Processes {
		processes[pid] = ProcessMetadata{
			PID:       m.PID,
			Name:      m.Name,
			StartTime: m.StartTime,
			ExitCode:  m.ExitCode,
			StopTime:  m.StopTime,
		}
	}
	return ProcessHierarchyArtifact{
		RootPID:   t.RootPID,
		Processes: processes,
		Children:  t.Children,
	}
}

func (*ProcessHierarchyArtifact) Name() string { return "ProcessHierarchy" }

// Save writes the artefact in a single Encode call; unlike MemtrackArtifact
// there's no per-event streaming concern since the whole tree is already
// resident in memory by the time tracking ends.
func (a *ProcessHierarchyArtifact) Save(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(a); err != nil {
		return fmt.Errorf("artifact: encode process hierarchy: %w", err)
	}
	return nil
}

// LoadProcessHierarchy decodes an artefact previously written by Save.
func LoadProcessHierarchy(r io.Reader) (*ProcessHierarchyArtifact, error) {
	var a ProcessHierarchyArtifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("artifact: decode process hierarchy: %w", err)
	}
	return &a, nil
}
