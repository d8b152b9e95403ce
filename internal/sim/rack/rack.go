package rack

import (
	"fmt"
	"sort"

	"storageracks.ai/internal/sim/grid"
)

type Variant string

const (
	VariantEmpty Variant = "EMPTY"
	VariantFull  Variant = "FULL"
)

// Layout decides how many slots a rack has at a given size tier.
type Layout struct {
	BaseSlots    int
	SlotsPerTier int
	MaxTier      int
}

func DefaultLayout() Layout {
	return Layout{BaseSlots: 27, SlotsPerTier: 9, MaxTier: 5}
}

func (l Layout) Capacity(tier int) int { return l.BaseSlots + tier*l.SlotsPerTier }

func (l Layout) ValidTier(tier int) bool { return tier >= 0 && tier <= l.MaxTier }

// Rack is one storage node. It exclusively owns its slot sequence; content
// and free are derived from slots and rebuilt after every mutation.
type Rack struct {
	Pos  grid.Vec3i
	Tier int

	layout  Layout
	slots   []Slot
	content map[ItemKey]int
	free    int

	// Offset from the owning controller to this rack (Pos - controller).
	offset *grid.Vec3i
}

func New(pos grid.Vec3i, tier int, layout Layout) *Rack {
	r := &Rack{
		Pos:     pos,
		Tier:    tier,
		layout:  layout,
		slots:   make([]Slot, layout.Capacity(tier)),
		content: map[ItemKey]int{},
	}
	r.RecomputeAggregate()
	return r
}

func (r *Rack) Capacity() int { return len(r.slots) }

func (r *Rack) Slots() []Slot {
	out := make([]Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

func (r *Rack) Slot(i int) Slot { return r.slots[i] }

// SetSlot replaces slot i and rebuilds the aggregate. An out of range index
// or a negative count is a caller bug.
func (r *Rack) SetSlot(i int, s Slot) {
	if i < 0 || i >= len(r.slots) {
		panic(fmt.Sprintf("rack %v: slot index %d out of range [0,%d)", r.Pos, i, len(r.slots)))
	}
	if s.Count < 0 {
		panic(fmt.Sprintf("rack %v: negative count %d in slot %d", r.Pos, s.Count, i))
	}
	if s.Empty() {
		s = Slot{}
	}
	r.slots[i] = s
	r.RecomputeAggregate()
}

// RecomputeAggregate rebuilds content and free from the slot sequence.
func (r *Rack) RecomputeAggregate() {
	content := make(map[ItemKey]int, len(r.content))
	free := 0
	for _, s := range r.slots {
		if s.Empty() {
			free++
			continue
		}
		content[s.Key] += s.Count
	}
	r.content = content
	r.free = free
}

func (r *Rack) FreeSlots() int { return r.free }

func (r *Rack) IsEmpty() bool { return len(r.content) == 0 }

func (r *Rack) Variant() Variant {
	if r.IsEmpty() {
		return VariantEmpty
	}
	return VariantFull
}

func (r *Rack) Count(key ItemKey) int { return r.content[key] }

// Has reports whether this rack alone holds at least n of key.
func (r *Rack) Has(key ItemKey, n int) bool { return r.content[key] >= n }

func (r *Rack) Content() map[ItemKey]int {
	out := make(map[ItemKey]int, len(r.content))
	for k, n := range r.content {
		out[k] = n
	}
	return out
}

// ContentList returns the aggregate sorted by item then meta.
func (r *Rack) ContentList() []Slot {
	out := make([]Slot, 0, len(r.content))
	for k, n := range r.content {
		out = append(out, Slot{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Item != out[j].Key.Item {
			return out[i].Key.Item < out[j].Key.Item
		}
		return out[i].Key.Meta < out[j].Key.Meta
	})
	return out
}

// Overflow returns the non-empty slots that would not fit at tier.
func (r *Rack) Overflow(tier int) []Slot {
	n := r.layout.Capacity(tier)
	var out []Slot
	for i := n; i < len(r.slots); i++ {
		if !r.slots[i].Empty() {
			out = append(out, r.slots[i])
		}
	}
	return out
}

// Resize reallocates the slot sequence for tier, copying slots in index
// order. Slots past the new capacity are dropped from the rack and returned
// so the caller can dispose of them.
func (r *Rack) Resize(tier int) []Slot {
	overflow := r.Overflow(tier)
	next := make([]Slot, r.layout.Capacity(tier))
	copy(next, r.slots)
	r.slots = next
	r.Tier = tier
	r.RecomputeAggregate()
	return overflow
}

// Drain empties every slot and returns what was stored.
func (r *Rack) Drain() []Slot {
	var out []Slot
	for i, s := range r.slots {
		if !s.Empty() {
			out = append(out, s)
		}
		r.slots[i] = Slot{}
	}
	r.RecomputeAggregate()
	return out
}

func (r *Rack) ControllerOffset() (grid.Vec3i, bool) {
	if r.offset == nil {
		return grid.Vec3i{}, false
	}
	return *r.offset, true
}

func (r *Rack) SetControllerOffset(off *grid.Vec3i) {
	if off == nil {
		r.offset = nil
		return
	}
	v := *off
	r.offset = &v
}

// ControllerPos resolves the cached offset to an absolute position.
func (r *Rack) ControllerPos() (grid.Vec3i, bool) {
	off, ok := r.ControllerOffset()
	if !ok {
		return grid.Vec3i{}, false
	}
	return r.Pos.Sub(off), true
}
