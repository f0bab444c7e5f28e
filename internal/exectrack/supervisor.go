package exectrack

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/codspeedhq/tracecore/internal/artifact"
	"github.com/codspeedhq/tracecore/internal/bpfevents"
	"github.com/codspeedhq/tracecore/internal/hierarchy"
	"github.com/codspeedhq/tracecore/internal/ringpoll"
)

// Config controls one supervised run.
type Config struct {
	ObjPath   string   // path to bpf/process/process.o
	Command   []string // argv of the process to spawn and trace
	OutputDir string   // directory the ProcessHierarchy artefact is written into
}

// Run spawns Config.Command, builds its process hierarchy from fork/exec/
// exit events, and saves it once the command exits. Unlike memtrack there
// is no drain/write split: events are folded into the hierarchy builder as
// they arrive and the whole tree is serialized once, in memory, at the
// end - there's no per-event artefact to stream.
func Run(cfg Config) error {
	tracker, err := New(cfg.ObjPath)
	if err != nil {
		return fmt.Errorf("exectrack: init tracker: %w", err)
	}
	defer tracker.Close()

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exectrack: spawn %v: %w", cfg.Command, err)
	}
	rootPID := int32(cmd.Process.Pid)
	if err := tracker.Track(rootPID); err != nil {
		return fmt.Errorf("exectrack: track root pid %d: %w", rootPID, err)
	}

	builder := hierarchy.New(rootPID)
	poller, events := ringpoll.WithChannel[bpfevents.ProcessEvent](tracker.Probes().Reader(), 4096)

	var buildErr error
	consume := func(e *bpfevents.ProcessEvent) {
		if buildErr != nil {
			return
		}
		if !e.EventType.Valid() {
			buildErr = fmt.Errorf("exectrack: unknown process event type %d", e.EventType)
			return
		}
		builder.Process(e)
	}

	stopCh := make(chan struct{})
	processDone := make(chan struct{})
	go func() {
		defer close(processDone)
		for {
			select {
			case e := <-events:
				consume(&e)
			case <-stopCh:
				// Drain whatever is already buffered before returning;
				// poller.Close() has already joined its goroutine by the
				// time stopCh is closed, so no further sends can race this.
				for {
					select {
					case e := <-events:
						consume(&e)
					default:
						return
					}
				}
			}
		}
	}()

	waitErr := cmd.Wait()

	// Give any events still in flight a moment to surface before closing
	// the poller, the same final-drain courtesy memtrack's pipeline gives
	// its own ring buffer.
	time.Sleep(50 * time.Millisecond)
	if err := poller.Close(); err != nil {
		return fmt.Errorf("exectrack: closing poller: %w", err)
	}
	close(stopCh)
	<-processDone
	if buildErr != nil {
		return buildErr
	}

	art := artifact.FromTree(builder.Tree())
	f, err := artifact.OpenFile(cfg.OutputDir, &art, &rootPID)
	if err != nil {
		return fmt.Errorf("exectrack: open artifact: %w", err)
	}
	defer f.Close()
	if err := art.Save(f); err != nil {
		return fmt.Errorf("exectrack: save artifact: %w", err)
	}

	if waitErr != nil {
		return fmt.Errorf("exectrack: traced command failed: %w", waitErr)
	}
	return nil
}
