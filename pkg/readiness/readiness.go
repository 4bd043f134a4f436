// Package readiness decides which time buckets are complete across every
// tracked series.
//
// A bucket is ready once each producer has recorded it and it has fallen out
// of that producer's trailing margin, the most recent entries which may still
// be filling. Trimming is applied per series before the intersection because
// producers write at independent, unsynchronized rates.
package readiness

import (
	"fmt"
	"slices"
)

// DefaultMargin is the number of most recent entries excluded per series.
const DefaultMargin = 2

// Series identifies one tracked producer.
type Series struct {
	// Name is the logical producer name used in logs and metrics (e.g. "map").
	Name string `yaml:"name"`

	// Key is the store key holding the producer's timestamps.
	Key string `yaml:"key"`
}

// Trim returns ts without its last margin entries.
// The result aliases ts. A negative margin is treated as 0.
func Trim(ts []int64, margin int) []int64 {
	if margin <= 0 {
		return ts
	}
	if len(ts) <= margin {
		return ts[:0]
	}
	return ts[:len(ts)-margin]
}

// Compute returns the timestamps present in every view, sorted ascending and
// without duplicates. Views are expected to be trimmed already.
//
// Compute returns an error wrapping ErrConfiguration when views is empty.
func Compute(views map[string][]int64) ([]int64, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("%w: no series configured", ErrConfiguration)
	}

	// Intersect starting from the smallest view so the working set only shrinks.
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return len(views[a]) - len(views[b])
	})

	common := make(map[int64]struct{}, len(views[names[0]]))
	for _, ts := range views[names[0]] {
		common[ts] = struct{}{}
	}

	for _, name := range names[1:] {
		if len(common) == 0 {
			break
		}
		seen := make(map[int64]struct{}, len(common))
		for _, ts := range views[name] {
			if _, ok := common[ts]; ok {
				seen[ts] = struct{}{}
			}
		}
		common = seen
	}

	ready := make([]int64, 0, len(common))
	for ts := range common {
		ready = append(ready, ts)
	}
	slices.Sort(ready)
	return ready, nil
}

// Ready trims every series by margin and intersects the results.
func Ready(full map[string][]int64, margin int) ([]int64, error) {
	views := make(map[string][]int64, len(full))
	for name, ts := range full {
		views[name] = Trim(ts, margin)
	}
	return Compute(views)
}
