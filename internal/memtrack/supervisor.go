package memtrack

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/codspeedhq/tracecore/internal/artifact"
	"github.com/codspeedhq/tracecore/internal/bpfevents"
	"github.com/codspeedhq/tracecore/internal/ipc"
	"github.com/codspeedhq/tracecore/internal/ringpoll"
)

// Config controls one supervised run.
type Config struct {
	ObjPath     string // path to bpf/alloc/alloc.o
	Command     string // shell command to spawn and trace, run via sh -c
	OutputDir   string // directory MemtrackArtifact is written into
	IPCSockPath string // rendezvous socket to announce the control address on; empty disables IPC
}

// drainInterval bounds how long the drain goroutine blocks between checks
// of the shutdown flag.
const drainInterval = 100 * time.Millisecond

// Run spawns Config.Command under a shell, traces its allocation
// lifecycle, and writes a MemtrackArtifact to Config.OutputDir once the
// command exits. It uses a two-stage drain/write pipeline: a drain
// goroutine forwards ring-buffer events into a write channel, while a
// separate writer goroutine encodes them through a buffered writer, so
// disk writes happen in batches and never on the drain goroutine.
func Run(cfg Config) error {
	// The control listener comes up before tracker init: loading and
	// attaching uprobes can take seconds on large libraries, and an
	// orchestrator's connect timeout should overlap that slow step
	// rather than start after it.
	var ipcServer *ipc.Server
	var ipcListener net.Listener
	if cfg.IPCSockPath != "" {
		var err error
		ipcListener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("memtrack: listen for ipc: %w", err)
		}
		defer ipcListener.Close()
		if err := ipc.Announce(cfg.IPCSockPath, ipcListener.Addr().String()); err != nil {
			return fmt.Errorf("memtrack: announce ipc address: %w", err)
		}
	}

	tracker, err := New(cfg.ObjPath)
	if err != nil {
		return fmt.Errorf("memtrack: init tracker: %w", err)
	}
	defer tracker.Close()

	if ipcListener != nil {
		ipcServer = ipc.NewServer(tracker)
		go func() {
			if err := ipcServer.Serve(ipcListener); err != nil {
				log.Printf("memtrack: ipc server stopped: %v", err)
			}
		}()
	}

	cmd := exec.Command("sh", "-c", cfg.Command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("memtrack: spawn %q: %w", cfg.Command, err)
	}
	rootPID := int32(cmd.Process.Pid)
	if err := tracker.Track(rootPID); err != nil {
		return fmt.Errorf("memtrack: track root pid %d: %w", rootPID, err)
	}

	f, err := artifact.OpenFile(cfg.OutputDir, (*artifact.MemtrackArtifact)(nil), &rootPID)
	if err != nil {
		return fmt.Errorf("memtrack: open artifact: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	out := artifact.NewMemtrackArtifact(bw)

	writeCh := make(chan bpfevents.AllocEvent, 4096)
	writerDone := make(chan error, 1)
	go runWriter(out, writeCh, writerDone)

	var draining atomic.Bool
	draining.Store(true)
	poller, events := ringpoll.WithChannel[bpfevents.AllocEvent](tracker.Probes().Reader(), 4096)
	drainDone := make(chan struct{})
	go runDrain(&draining, events, writeCh, drainDone)

	waitErr := cmd.Wait()

	draining.Store(false)
	<-drainDone

	if err := poller.Close(); err != nil {
		log.Printf("memtrack: closing poller: %v", err)
	}
	close(writeCh)
	if err := <-writerDone; err != nil {
		return fmt.Errorf("memtrack: writer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("memtrack: flush artifact: %w", err)
	}

	if ipcServer != nil {
		ipcServer.Stop()
	}

	if waitErr != nil {
		return fmt.Errorf("memtrack: traced command failed: %w", waitErr)
	}
	return nil
}

func runDrain(draining *atomic.Bool, events <-chan bpfevents.AllocEvent, out chan<- bpfevents.AllocEvent, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for draining.Load() {
		select {
		case e := <-events:
			out <- e
		case <-ticker.C:
		}
	}
	// Final phase: drain until empty, give in-flight ring-buffer writes a
	// moment to surface, then drain once more before exiting.
	flush(events, out)
	time.Sleep(50 * time.Millisecond)
	flush(events, out)
}

func flush(events <-chan bpfevents.AllocEvent, out chan<- bpfevents.AllocEvent) {
	for {
		select {
		case e := <-events:
			out <- e
		default:
			return
		}
	}
}

func runWriter(out *artifact.MemtrackArtifact, in <-chan bpfevents.AllocEvent, done chan<- error) {
	fail := func(err error) {
		done <- err
		// Keep draining the channel so the drain goroutine's send never
		// blocks forever even once the writer has given up.
		for range in {
		}
	}
	for e := range in {
		if !e.EventType.Valid() {
			fail(fmt.Errorf("unknown allocation event type %d", e.EventType))
			return
		}
		if err := out.WriteEvent(artifact.MemtrackEventFromRaw(e)); err != nil {
			fail(err)
			return
		}
	}
	done <- nil
}
