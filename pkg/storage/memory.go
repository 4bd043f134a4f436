package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
)

type entry struct {
	score  float64
	member string
}

func entryLess(a, b entry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

type sortedSet struct {
	entries *btree.BTreeG[entry]
	scores  map[string]float64
}

// MemoryStore keeps series in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	sets   map[string]*sortedSet
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]*sortedSet)}
}

// Add inserts member into key with score, moving it if already present.
func (m *MemoryStore) Add(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}

	set, ok := m.sets[key]
	if !ok {
		set = &sortedSet{
			entries: btree.NewG[entry](8, entryLess),
			scores:  make(map[string]float64),
		}
		m.sets[key] = set
	}

	if old, ok := set.scores[member]; ok {
		set.entries.Delete(entry{score: old, member: member})
	}
	set.scores[member] = score
	set.entries.ReplaceOrInsert(entry{score: score, member: member})
	return nil
}

// Range implements Store.
func (m *MemoryStore) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed
	}

	set, ok := m.sets[key]
	if !ok {
		return []string{}, nil
	}

	lo, hi, ok := resolveRange(start, stop, int64(set.entries.Len()))
	if !ok {
		return []string{}, nil
	}

	members := make([]string, 0, hi-lo+1)
	var rank int64
	set.entries.Ascend(func(e entry) bool {
		if rank > hi {
			return false
		}
		if rank >= lo {
			members = append(members, e.member)
		}
		rank++
		return true
	})
	return members, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}
	return nil
}

// Close implements Store. A closed MemoryStore reports ErrUnavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sets = nil
	return nil
}

var errClosed = fmt.Errorf("%w: store closed", ErrUnavailable)
