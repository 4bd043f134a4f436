package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Key layout:
//
//	'e' key 0x00 score(8) member -> nil          (rank order)
//	'm' key 0x00 member          -> score(8)     (member lookup)
//
// Series keys must not contain 0x00.
const (
	entryNamespace  = 'e'
	memberNamespace = 'm'
)

// PebbleStore reads series from an embedded Pebble database whose keys sort
// in rank order.
type PebbleStore struct {
	db *pebble.DB

	// mu serializes Add's read of the old score with its batch commit.
	mu sync.Mutex
}

// OpenPebbleStore opens (creating if needed) the database in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Range implements Store. Both passes run on one iterator, which reads a
// consistent snapshot.
func (p *PebbleStore) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := seriesPrefix(entryNamespace, key)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrUnavailable, key, err)
	}
	defer iter.Close()

	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrUnavailable, key, err)
	}

	lo, hi, ok := resolveRange(start, stop, n)
	if !ok {
		return []string{}, nil
	}

	members := make([]string, 0, hi-lo+1)
	var rank int64
	for iter.First(); iter.Valid() && rank <= hi; iter.Next() {
		if rank >= lo {
			members = append(members, string(iter.Key()[len(prefix)+8:]))
		}
		rank++
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrUnavailable, key, err)
	}
	return members, nil
}

// Add records member with score under key, replacing any previous score.
func (p *PebbleStore) Add(_ context.Context, key string, score float64, member string) error {
	memberKey := append(seriesPrefix(memberNamespace, key), member...)
	newScore := encodeScore(score)

	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	old, closer, err := p.db.Get(memberKey)
	switch {
	case err == nil:
		oldScore := bytes.Clone(old)
		_ = closer.Close()
		if err := batch.Delete(entryKey(key, oldScore, member), nil); err != nil {
			return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, key, err)
		}
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return fmt.Errorf("%w: get %s: %w", ErrUnavailable, key, err)
	}

	if err := batch.Set(entryKey(key, newScore, member), nil, nil); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, key, err)
	}
	if err := batch.Set(memberKey, newScore, nil); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, key, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: commit %s: %w", ErrUnavailable, key, err)
	}
	return nil
}

// Ping implements Store.
func (p *PebbleStore) Ping(context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("%w: pebble not open", ErrUnavailable)
	}
	return nil
}

// Close implements Store.
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func seriesPrefix(namespace byte, key string) []byte {
	b := make([]byte, 0, len(key)+2)
	b = append(b, namespace)
	b = append(b, key...)
	return append(b, 0)
}

func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	end[len(end)-1]++
	return end
}

func entryKey(key string, score []byte, member string) []byte {
	b := seriesPrefix(entryNamespace, key)
	b = append(b, score...)
	return append(b, member...)
}

// encodeScore maps a float64 onto 8 bytes whose byte order matches numeric
// order.
func encodeScore(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}
