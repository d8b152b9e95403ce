package world

import (
	"fmt"

	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
)

// PlaceRack adds a rack of the given size tier. A rejected placement leaves
// the world exactly as it was and returns the decision's error.
func (w *World) PlaceRack(pos grid.Vec3i, tier int) (cluster.Decision, error) {
	return w.placeRack(ActorLocal, pos, tier)
}

func (w *World) PlaceController(pos grid.Vec3i, tier int) (cluster.Decision, error) {
	return w.placeController(ActorLocal, pos, tier)
}

// Remove takes the node at pos out of the world. A removed rack's contents
// go to the item sink and are also returned.
func (w *World) Remove(pos grid.Vec3i) (cluster.Decision, []rack.Slot, error) {
	return w.remove(ActorLocal, pos)
}

func (w *World) placeRack(actor string, pos grid.Vec3i, tier int) (cluster.Decision, error) {
	if !w.cfg.Layout.ValidTier(tier) {
		return cluster.Decision{}, fmt.Errorf("%w: rack tier %d", ErrBadTier, tier)
	}
	if w.grid.IsOccupied(pos) {
		return cluster.Decision{}, ErrOccupied
	}
	w.grid.Set(pos, grid.Rack(tier))
	w.racks[pos] = rack.New(pos, tier, w.cfg.Layout)
	d := w.engine.OnNodeAdded(pos)
	if !d.Committed() {
		delete(w.racks, pos)
		w.grid.Clear(pos)
	}
	w.recordPlacement(actor, "PLACE_RACK", pos, d)
	return d, d.Outcome.Err()
}

func (w *World) placeController(actor string, pos grid.Vec3i, tier int) (cluster.Decision, error) {
	if tier < 0 {
		return cluster.Decision{}, fmt.Errorf("%w: controller tier %d", ErrBadTier, tier)
	}
	if w.grid.IsOccupied(pos) {
		return cluster.Decision{}, ErrOccupied
	}
	w.grid.Set(pos, grid.Controller(tier))
	d := w.engine.OnNodeAdded(pos)
	if !d.Committed() {
		w.grid.Clear(pos)
	}
	w.recordPlacement(actor, "PLACE_CONTROLLER", pos, d)
	return d, d.Outcome.Err()
}

func (w *World) remove(actor string, pos grid.Vec3i) (cluster.Decision, []rack.Slot, error) {
	kind := w.grid.KindAt(pos)
	if !kind.Occupied() {
		return cluster.Decision{}, nil, ErrNoNode
	}
	w.grid.Clear(pos)
	// The rack record stays until the engine has released its membership.
	d := w.engine.OnNodeRemoved(pos)

	var items []rack.Slot
	if r := w.racks[pos]; r != nil {
		items = r.Drain()
		delete(w.racks, pos)
	}
	w.recordPlacement(actor, "REMOVE", pos, d)
	w.eject(actor, pos, items, "removed")
	return d, items, nil
}

func (w *World) recordPlacement(actor, action string, pos grid.Vec3i, d cluster.Decision) {
	if w.metrics != nil {
		w.metrics.observePlacement(d.Outcome)
		w.metrics.setTopology(len(w.racks), w.registry.Len())
	}
	details := map[string]any{"members": d.Members}
	if d.HasController {
		details["controller"] = d.Controller.ToArray()
	}
	if len(d.Conflict) > 0 {
		cs := make([][3]int, len(d.Conflict))
		for i, c := range d.Conflict {
			cs[i] = c.ToArray()
		}
		details["conflict"] = cs
	}
	w.audit(actor, action, pos, d.Outcome.String(), "", details)
}
