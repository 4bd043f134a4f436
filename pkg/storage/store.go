// Package storage reads ordered timestamp series maintained by upstream
// producers.
//
// Every backend models a series as a sorted set: members ordered by score,
// addressed by rank with Redis ZRANGE semantics. Readers never write; the
// Add methods on the concrete stores exist for producers and tests.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every I/O failure reaching a backend. Callers treat it
// as transient.
var ErrUnavailable = errors.New("store unavailable")

// Store is a read-only view over ordered series.
type Store interface {
	// Range returns the members of key ranked start..stop inclusive, ordered
	// by ascending score. Negative indexes count from the end, so -1 is the
	// last member and stop = -3 leaves out the two most recent members.
	// A missing key yields an empty result.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// resolveRange converts ZRANGE-style indexes into absolute inclusive bounds
// for a set of n members. ok is false when the range is empty.
func resolveRange(start, stop, n int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
