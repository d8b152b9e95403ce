// Package highlight keeps timed marker boxes grouped by category.
package highlight

import (
	"sort"

	"storageracks.ai/internal/sim/grid"
)

// CategoryInventory holds the box placed by a locate query.
const CategoryInventory = "inventory_highlight"

const DefaultColor uint32 = 0xFFFFFF

type Box struct {
	Pos   grid.Vec3i
	Text  []string
	Color uint32

	// RemoveAtTick is the first tick at which the box is gone.
	RemoveAtTick uint64
}

// RGB splits Color into 0..1 channel fractions.
func (b Box) RGB() (r, g, bl float32) {
	return float32((b.Color>>16)&0xFF) / 255, float32((b.Color>>8)&0xFF) / 255, float32(b.Color&0xFF) / 255
}

// Manager is not safe for concurrent use; the world loop owns it.
type Manager struct {
	boxes map[string][]Box
}

func NewManager() *Manager { return &Manager{boxes: map[string][]Box{}} }

// Add appends b to category.
func (m *Manager) Add(category string, b Box) {
	b.Text = append([]string(nil), b.Text...)
	m.boxes[category] = append(m.boxes[category], b)
}

// Replace drops every box in category and adds b.
func (m *Manager) Replace(category string, b Box) {
	m.Clear(category)
	m.Add(category, b)
}

func (m *Manager) Clear(category string) { delete(m.boxes, category) }

// Expire removes boxes whose removal tick is at or before now and returns
// how many were removed. Empty categories are dropped.
func (m *Manager) Expire(now uint64) int {
	removed := 0
	for cat, bs := range m.boxes {
		kept := bs[:0]
		for _, b := range bs {
			if b.RemoveAtTick <= now {
				removed++
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			delete(m.boxes, cat)
			continue
		}
		m.boxes[cat] = kept
	}
	return removed
}

func (m *Manager) Active(category string) []Box {
	bs := m.boxes[category]
	out := make([]Box, len(bs))
	copy(out, bs)
	return out
}

func (m *Manager) Categories() []string {
	out := make([]string, 0, len(m.boxes))
	for c := range m.boxes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Len() int {
	n := 0
	for _, bs := range m.boxes {
		n += len(bs)
	}
	return n
}
