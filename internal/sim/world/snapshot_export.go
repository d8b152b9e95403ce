package world

import (
	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/rack"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		TickRate: w.cfg.TickRateHz,
		Layout: snapshot.LayoutV1{
			BaseSlots:    w.cfg.Layout.BaseSlots,
			SlotsPerTier: w.cfg.Layout.SlotsPerTier,
			MaxTier:      w.cfg.Layout.MaxTier,
			TierUnit:     w.cfg.TierUnit,
		},
	}
	for _, p := range w.grid.Positions() {
		k := w.grid.KindAt(p)
		switch {
		case k.IsController():
			s.Controllers = append(s.Controllers, snapshot.ControllerV1{Pos: p.ToArray(), Tier: k.Tier})
		case k.IsRack():
			s.Racks = append(s.Racks, exportRack(w.racks[p]))
		}
	}
	return s
}

func exportRack(r *rack.Rack) snapshot.RackV1 {
	out := snapshot.RackV1{Pos: r.Pos.ToArray(), Tier: r.Tier}
	for i, sl := range r.Slots() {
		if sl.Empty() {
			continue
		}
		out.Slots = append(out.Slots, snapshot.SlotV1{Index: i, Item: sl.Key.Item, Meta: sl.Key.Meta, Count: sl.Count})
	}
	if off, ok := r.ControllerOffset(); ok {
		a := off.ToArray()
		out.ControllerOffset = &a
	}
	return out
}
