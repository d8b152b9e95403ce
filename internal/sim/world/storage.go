package world

import (
	"fmt"

	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
	"storageracks.ai/internal/sim/tuning"
)

// SetSlot overwrites one slot of the rack at pos. An empty slot is written
// by passing a zero count.
func (w *World) SetSlot(pos grid.Vec3i, index int, s rack.Slot) error {
	return w.setSlot(ActorLocal, pos, index, s)
}

// ResizeRack changes the size tier of the rack at pos. Items past the new
// capacity are ejected, or the resize is refused, depending on the
// configured shrink policy.
func (w *World) ResizeRack(pos grid.Vec3i, tier int) ([]rack.Slot, error) {
	return w.resizeRack(ActorLocal, pos, tier)
}

func (w *World) setSlot(actor string, pos grid.Vec3i, index int, s rack.Slot) error {
	r := w.racks[pos]
	if r == nil {
		return ErrNoRack
	}
	if index < 0 || index >= r.Capacity() {
		return fmt.Errorf("%w: index %d of %d", ErrBadSlot, index, r.Capacity())
	}
	if s.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrBadSlot, s.Count)
	}
	if s.Count > 0 && s.Key.Item == "" {
		return fmt.Errorf("%w: stack without item id", ErrBadSlot)
	}
	before := r.Variant()
	r.SetSlot(index, s)
	w.auditVariant(actor, r, before)
	return nil
}

func (w *World) resizeRack(actor string, pos grid.Vec3i, tier int) ([]rack.Slot, error) {
	r := w.racks[pos]
	if r == nil {
		return nil, ErrNoRack
	}
	if !w.cfg.Layout.ValidTier(tier) {
		return nil, fmt.Errorf("%w: rack tier %d", ErrBadTier, tier)
	}
	if tier == r.Tier {
		return nil, nil
	}
	if tier < r.Tier && w.cfg.ShrinkPolicy == tuning.ShrinkForbid {
		if over := r.Overflow(tier); len(over) > 0 {
			return nil, fmt.Errorf("%w: %d stacks past slot %d", ErrInvalidTierTransition, len(over), w.cfg.Layout.Capacity(tier))
		}
	}
	from := r.Tier
	before := r.Variant()
	overflow := r.Resize(tier)
	w.grid.Set(pos, grid.Rack(tier))
	w.audit(actor, "RESIZE", pos, "", "", map[string]any{"from": from, "to": tier, "capacity": r.Capacity()})
	w.eject(actor, pos, overflow, "resized")
	w.auditVariant(actor, r, before)
	return overflow, nil
}

func (w *World) auditVariant(actor string, r *rack.Rack, before rack.Variant) {
	if after := r.Variant(); after != before {
		w.audit(actor, "VARIANT", r.Pos, string(after), "", nil)
	}
}
