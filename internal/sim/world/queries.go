package world

import (
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/highlight"
	"storageracks.ai/internal/sim/query"
	"storageracks.ai/internal/sim/rack"
)

// Cluster returns the read view of the controller at pos.
func (w *World) Cluster(controller grid.Vec3i) (query.Cluster, bool) {
	c := w.registry.Get(controller)
	if c == nil {
		return query.Cluster{}, false
	}
	return query.Cluster{Controller: c.Pos, Members: c.Members(), Racks: w.racks}, true
}

// ClusterOf resolves any member, controller or rack, to its cluster.
func (w *World) ClusterOf(pos grid.Vec3i) (query.Cluster, bool) {
	if c, ok := w.Cluster(pos); ok {
		return c, true
	}
	r := w.racks[pos]
	if r == nil {
		return query.Cluster{}, false
	}
	ctrl, ok := r.ControllerPos()
	if !ok {
		return query.Cluster{}, false
	}
	return w.Cluster(ctrl)
}

// Locate finds the first member rack of pos's cluster holding at least min
// of key and marks it with an inventory highlight, replacing any previous
// one.
func (w *World) Locate(pos grid.Vec3i, key rack.ItemKey, min int) (grid.Vec3i, bool, error) {
	c, ok := w.ClusterOf(pos)
	if !ok {
		return grid.Vec3i{}, false, ErrNoController
	}
	at, found := c.Locate(key, min)
	if !found {
		return grid.Vec3i{}, false, nil
	}
	w.highlights.Replace(highlight.CategoryInventory, highlight.Box{
		Pos:          at,
		Text:         []string{key.String()},
		Color:        w.cfg.HighlightColor,
		RemoveAtTick: w.tick.Load() + uint64(w.cfg.LocateTicks),
	})
	return at, true, nil
}

func (w *World) Highlights(category string) []highlight.Box { return w.highlights.Active(category) }
