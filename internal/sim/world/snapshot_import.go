package world

import (
	"fmt"

	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/highlight"
	"storageracks.ai/internal/sim/rack"
)

// ImportSnapshot replaces all world state with s and rediscovers every
// cluster. Stored controller offsets are only hints; stale ones are counted
// in the returned stats and corrected.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) (cluster.RebuildStats, error) {
	if s.Header.Version != snapshot.Version {
		return cluster.RebuildStats{}, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if s.Header.WorldID != "" && s.Header.WorldID != w.cfg.ID {
		return cluster.RebuildStats{}, fmt.Errorf("snapshot world_id mismatch: cfg=%s snap=%s", w.cfg.ID, s.Header.WorldID)
	}
	if s.Layout.BaseSlots != 0 && (s.Layout.BaseSlots != w.cfg.Layout.BaseSlots || s.Layout.SlotsPerTier != w.cfg.Layout.SlotsPerTier) {
		return cluster.RebuildStats{}, fmt.Errorf("snapshot rack layout mismatch: cfg=%+v snap=%+v", w.cfg.Layout, s.Layout)
	}

	g := grid.New()
	racks := rackIndex{}
	for _, c := range s.Controllers {
		p := grid.FromArray(c.Pos)
		if g.IsOccupied(p) {
			return cluster.RebuildStats{}, fmt.Errorf("snapshot: duplicate node at %v", p)
		}
		if c.Tier < 0 {
			return cluster.RebuildStats{}, fmt.Errorf("snapshot: controller %v: %w", p, ErrBadTier)
		}
		g.Set(p, grid.Controller(c.Tier))
	}
	for _, rv := range s.Racks {
		p := grid.FromArray(rv.Pos)
		if g.IsOccupied(p) {
			return cluster.RebuildStats{}, fmt.Errorf("snapshot: duplicate node at %v", p)
		}
		if !w.cfg.Layout.ValidTier(rv.Tier) {
			return cluster.RebuildStats{}, fmt.Errorf("snapshot: rack %v tier %d: %w", p, rv.Tier, ErrBadTier)
		}
		r := rack.New(p, rv.Tier, w.cfg.Layout)
		for _, sl := range rv.Slots {
			if sl.Index < 0 || sl.Index >= r.Capacity() || sl.Count < 0 || (sl.Count > 0 && sl.Item == "") {
				return cluster.RebuildStats{}, fmt.Errorf("snapshot: rack %v slot %d: %w", p, sl.Index, ErrBadSlot)
			}
			r.SetSlot(sl.Index, rack.Slot{Key: rack.ItemKey{Item: sl.Item, Meta: sl.Meta}, Count: sl.Count})
		}
		if rv.ControllerOffset != nil {
			off := grid.FromArray(*rv.ControllerOffset)
			r.SetControllerOffset(&off)
		}
		g.Set(p, grid.Rack(rv.Tier))
		racks[p] = r
	}

	w.resetTopology(g, racks)
	w.highlights = highlight.NewManager()
	for _, c := range s.Controllers {
		w.registry.Create(grid.FromArray(c.Pos), c.Tier)
	}
	st := w.engine.Rebuild(w.grid.Positions())
	w.log.Printf("snapshot tick %d imported: %d racks, %d controllers, %d components, %d conflicts, %d stale hints",
		s.Header.Tick, len(racks), len(s.Controllers), st.Components, st.Conflicts, st.StaleHints)
	if w.metrics != nil {
		w.metrics.setTopology(len(w.racks), w.registry.Len())
	}

	// Resume on the next tick.
	w.tick.Store(s.Header.Tick + 1)
	return st, nil
}
