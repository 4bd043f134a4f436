// Package sink surfaces each poll cycle's ready set to downstream consumers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// Snapshot is the outcome of one poll cycle.
type Snapshot struct {
	// Ready holds the complete buckets, ascending.
	Ready []int64 `json:"ready"`

	GeneratedAt time.Time `json:"generatedAt"`

	// Margin is the number of trailing entries excluded per series.
	Margin int `json:"margin"`

	// Series maps each series name to the length of its trimmed view.
	Series map[string]int `json:"series"`

	// Skipped counts entries dropped because they were not timestamps.
	Skipped int `json:"skipped,omitempty"`
}

// Latest returns the most recent ready timestamp, if any.
func (s Snapshot) Latest() (int64, bool) {
	if len(s.Ready) == 0 {
		return 0, false
	}
	return s.Ready[len(s.Ready)-1], true
}

// Sink receives snapshots from the poll loop.
type Sink interface {
	Emit(ctx context.Context, snap Snapshot) error
}

// Printer writes each snapshot as one JSON line.
type Printer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{enc: json.NewEncoder(w)}
}

// Emit implements Sink.
func (p *Printer) Emit(_ context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(snap)
}

// Holder keeps the most recent snapshot for readers such as HTTP handlers.
// It is safe for concurrent use.
type Holder struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

// NewHolder returns an empty Holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Emit implements Sink.
func (h *Holder) Emit(_ context.Context, snap Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snap = snap
	h.ok = true
	return nil
}

// Get returns the latest snapshot and whether one has been emitted yet.
func (h *Holder) Get() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap, h.ok
}

// Multi fans a snapshot out to several sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every snapshot.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Snapshot) error { return nil }
