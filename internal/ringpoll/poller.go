// Package ringpoll generalizes the ring-buffer-drain loop every probe
// supervisor in this repo needs into a single generic type, shared by the
// memtrack and exectrack trackers instead of duplicated per package.
package ringpoll

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf/ringbuf"
)

// DefaultPollTimeout bounds each blocked Read so shutdown can be observed
// promptly instead of waiting indefinitely on an idle ring buffer.
const DefaultPollTimeout = 10 * time.Millisecond

// Poller drains a ring buffer in a background goroutine, decoding each
// record into T and handing it to a callback. T must be a fixed-layout
// struct matching the producer's raw event, the same constraint the BPF
// event types in internal/bpfevents satisfy.
type Poller[T any] struct {
	rd       *ringbuf.Reader
	onEvent  func(T)
	onError  func(error)
	timeout  time.Duration
	stopping atomic.Bool
	dropped  atomic.Uint64
	wg       sync.WaitGroup
}

// New starts polling rd in a background goroutine with DefaultPollTimeout,
// invoking onEvent for every successfully decoded record. onError, if
// non-nil, is invoked for decode or read errors other than the reader
// being closed.
func New[T any](rd *ringbuf.Reader, onEvent func(T), onError func(error)) *Poller[T] {
	return NewWithTimeout(rd, onEvent, onError, DefaultPollTimeout)
}

// NewWithTimeout is New with an explicit poll timeout, bounding both how
// long each Read may block and how long Close can take to be observed.
func NewWithTimeout[T any](rd *ringbuf.Reader, onEvent func(T), onError func(error), timeout time.Duration) *Poller[T] {
	p := &Poller[T]{rd: rd, onEvent: onEvent, onError: onError, timeout: timeout}
	p.wg.Add(1)
	go p.run()
	return p
}

// WithChannel is a convenience constructor that delivers decoded events on
// the returned channel instead of a callback. The channel is generously
// buffered to absorb bursts without making the kernel-side ring buffer back
// up; callers that need back-pressure should drain promptly regardless.
func WithChannel[T any](rd *ringbuf.Reader, bufSize int) (*Poller[T], <-chan T) {
	ch := make(chan T, bufSize)
	p := New[T](rd, func(e T) { ch <- e }, nil)
	return p, ch
}

func (p *Poller[T]) run() {
	defer p.wg.Done()
	var zero T
	recordSize := binary.Size(zero)
	for {
		if p.stopping.Load() {
			return
		}
		// Bound the blocking read so a flipped stopping flag is observed
		// within one poll timeout instead of waiting indefinitely for the
		// next record to arrive.
		p.rd.SetDeadline(time.Now().Add(p.timeout))
		record, err := p.rd.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if p.onError != nil {
				p.onError(fmt.Errorf("ringpoll: read: %w", err))
			}
			continue
		}
		// Under-length records are dropped silently with only a counter
		// bump; over-length records are accepted and the excess ignored,
		// so a newer probe can grow the struct without breaking older
		// consumers.
		if len(record.RawSample) < recordSize {
			p.dropped.Add(1)
			continue
		}
		var event T
		if err := binary.Read(bytes.NewReader(record.RawSample), binary.LittleEndian, &event); err != nil {
			if p.onError != nil {
				p.onError(fmt.Errorf("ringpoll: decode: %w", err))
			}
			continue
		}
		p.onEvent(event)
	}
}

// Dropped returns how many under-length records have been discarded so
// far.
func (p *Poller[T]) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops the background goroutine and closes the underlying reader,
// unblocking any pending Read. It waits for the goroutine to exit before
// returning, so no event is delivered after Close returns.
func (p *Poller[T]) Close() error {
	p.stopping.Store(true)
	err := p.rd.Close()
	p.wg.Wait()
	return err
}
