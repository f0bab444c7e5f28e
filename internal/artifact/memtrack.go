package artifact

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/codspeedhq/tracecore/internal/bpfevents"
)

// MemtrackEvent is one allocation-lifecycle record, ready for encoding.
// Size is only meaningful for event types that carry one; see
// AllocEventType.HasSize.
type MemtrackEvent struct {
	PID       int32                    `msgpack:"pid"`
	TID       int32                    `msgpack:"tid"`
	Timestamp uint64                   `msgpack:"timestamp"`
	Addr      uint64                   `msgpack:"addr"`
	Kind      bpfevents.AllocEventType `msgpack:"kind"`
	Size      uint64                   `msgpack:"size,omitempty"`
}

// MemtrackEventFromRaw converts a decoded ring-buffer record into the
// artefact's wire shape.
func MemtrackEventFromRaw(e bpfevents.AllocEvent) MemtrackEvent {
	out := MemtrackEvent{
		PID:       int32(e.PID),
		TID:       int32(e.TID),
		Timestamp: e.Timestamp,
		Addr:      e.Addr,
		Kind:      e.EventType,
	}
	if e.EventType.HasSize() {
		out.Size = e.Size
	}
	return out
}

// MemtrackArtifact is the artefact type written by the memtrack
// supervisor: every allocation-lifecycle event observed for one tracked
// process tree. Events are written in the order they are drained, not
// sorted by timestamp; consumers that need strict timestamp order must
// sort them.
type MemtrackArtifact struct {
	writer *msgpack.Encoder
}

// NewMemtrackArtifact wraps w with a single reused msgpack encoder so that
// WriteEvent never builds the whole event list in memory; each call
// streams exactly one more record to disk.
func NewMemtrackArtifact(w io.Writer) *MemtrackArtifact {
	return &MemtrackArtifact{writer: msgpack.NewEncoder(w)}
}

func (*MemtrackArtifact) Name() string { return "MemtrackArtifact" }

// WriteEvent encodes one more event. Nothing is ever buffered past the
// current record, so millions of events stream through in constant
// memory.
func (a *MemtrackArtifact) WriteEvent(e MemtrackEvent) error {
	if err := a.writer.Encode(e); err != nil {
		return fmt.Errorf("artifact: encode memtrack event: %w", err)
	}
	return nil
}

// MemtrackEventStream lazily decodes a sequence of MemtrackEvent records
// previously written by MemtrackArtifact.
type MemtrackEventStream struct {
	dec *msgpack.Decoder
}

// DecodeMemtrackStream wraps r for lazy decoding: Next is only called as
// often as the caller wants the next event, never eagerly parsing the
// whole file.
func DecodeMemtrackStream(r io.Reader) *MemtrackEventStream {
	return &MemtrackEventStream{dec: msgpack.NewDecoder(r)}
}

// Next returns the next event, or ok=false once the stream is exhausted.
// A decode error other than io.EOF is returned as err with ok=false.
func (s *MemtrackEventStream) Next() (event MemtrackEvent, ok bool, err error) {
	if err := s.dec.Decode(&event); err != nil {
		if err == io.EOF {
			return MemtrackEvent{}, false, nil
		}
		return MemtrackEvent{}, false, fmt.Errorf("artifact: decode memtrack event: %w", err)
	}
	return event, true, nil
}
