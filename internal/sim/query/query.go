// Package query answers item questions for one controller's cluster.
package query

import (
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
)

// RackSource resolves a member position to its rack. Positions holding a
// controller, or nothing, return nil.
type RackSource interface {
	RackAt(p grid.Vec3i) *rack.Rack
}

// Cluster is a read view over the members of one controller. Members are
// expected in sorted order; Locate reports the first match in that order.
type Cluster struct {
	Controller grid.Vec3i
	Members    []grid.Vec3i
	Racks      RackSource
}

func (c Cluster) each(fn func(r *rack.Rack) bool) {
	for _, p := range c.Members {
		r := c.Racks.RackAt(p)
		if r == nil {
			continue
		}
		if !fn(r) {
			return
		}
	}
}

// HasItem reports whether some single member rack holds at least min of
// key. Counts spread over several racks do not add up here.
func (c Cluster) HasItem(key rack.ItemKey, min int) bool {
	_, ok := c.Locate(key, min)
	return ok
}

// Locate returns the first member rack holding at least min of key.
func (c Cluster) Locate(key rack.ItemKey, min int) (grid.Vec3i, bool) {
	var (
		at    grid.Vec3i
		found bool
	)
	c.each(func(r *rack.Rack) bool {
		if r.Has(key, min) {
			at, found = r.Pos, true
			return false
		}
		return true
	})
	return at, found
}

func (c Cluster) TotalCount(key rack.ItemKey) int {
	n := 0
	c.each(func(r *rack.Rack) bool {
		n += r.Count(key)
		return true
	})
	return n
}

func (c Cluster) AllAggregated() map[rack.ItemKey]int {
	out := map[rack.ItemKey]int{}
	c.each(func(r *rack.Rack) bool {
		for k, n := range r.Content() {
			out[k] += n
		}
		return true
	})
	return out
}

// RackCount is the number of members that resolve to a rack.
func (c Cluster) RackCount() int {
	n := 0
	c.each(func(*rack.Rack) bool {
		n++
		return true
	})
	return n
}

// FreeSlots sums the empty slots of every member rack.
func (c Cluster) FreeSlots() int {
	n := 0
	c.each(func(r *rack.Rack) bool {
		n += r.FreeSlots()
		return true
	})
	return n
}
