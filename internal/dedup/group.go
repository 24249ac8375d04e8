package dedup

import (
	"fmt"

	"github.com/roach88/tplscope/internal/record"
)

// Default group shape. With two filters rotated every 1000 insertions no
// filter ever holds more than DesignCapacity records.
const (
	DefaultGroupSize   = 2
	DefaultRotateEvery = DesignCapacity / DefaultGroupSize
)

// FilterGroup is a rotating ring of BloomFilters.
//
// Invariants:
//   - Every record inserted within the last rotateEvery insertions is
//     reported by Contains.
//   - Exactly one filter is cleared per rotateEvery insertions.
type FilterGroup struct {
	filters     []BloomFilter
	current     int
	inserted    int
	rotateEvery int
	rotations   int
}

// NewFilterGroup allocates a group of size filters that rotates every
// rotateEvery insertions.
func NewFilterGroup(size, rotateEvery int) (*FilterGroup, error) {
	if size < 2 {
		return nil, fmt.Errorf("dedup: filter group needs at least 2 filters, got %d", size)
	}
	if rotateEvery < 1 {
		return nil, fmt.Errorf("dedup: rotation interval must be positive, got %d", rotateEvery)
	}
	return &FilterGroup{
		filters:     make([]BloomFilter, size),
		rotateEvery: rotateEvery,
	}, nil
}

// Contains queries the current filter only.
func (g *FilterGroup) Contains(r record.LogRecord) bool {
	return g.filters[g.current].Contains(r)
}

// Insert adds r to every filter, rotating when the interval is reached.
func (g *FilterGroup) Insert(r record.LogRecord) {
	for i := range g.filters {
		g.filters[i].ContainsAndInsert(r)
	}
	g.inserted++
	if g.inserted%g.rotateEvery == 0 {
		g.filters[g.current].Reset()
		g.current = (g.current + 1) % len(g.filters)
		g.rotations++
	}
}

// Reset empties every filter and restarts the rotation schedule.
func (g *FilterGroup) Reset() {
	for i := range g.filters {
		g.filters[i].Reset()
	}
	g.current = 0
	g.inserted = 0
	g.rotations = 0
}

// Size is the number of filters in the ring.
func (g *FilterGroup) Size() int { return len(g.filters) }

// RotateEvery is the rotation interval.
func (g *FilterGroup) RotateEvery() int { return g.rotateEvery }

// Rotations is the number of filters cleared since the last Reset.
func (g *FilterGroup) Rotations() int { return g.rotations }

// Saturated reports whether the filter answering Contains holds more than
// DesignCapacity records, so its false-positive rate is above the design
// bound. It happens when Size() * RotateEvery() exceeds DesignCapacity.
func (g *FilterGroup) Saturated() bool {
	return g.filters[g.current].Saturated()
}
