package highlight

import (
	"testing"

	"storageracks.ai/internal/sim/grid"
)

func TestManager_ExpireAtRemovalTick(t *testing.T) {
	m := NewManager()
	m.Add(CategoryInventory, Box{Pos: grid.Vec3i{X: 1}, RemoveAtTick: 10})
	m.Add(CategoryInventory, Box{Pos: grid.Vec3i{X: 2}, RemoveAtTick: 20})
	m.Add("other", Box{RemoveAtTick: 10})

	if n := m.Expire(9); n != 0 || m.Len() != 3 {
		t.Fatalf("expire(9) removed %d, len=%d", n, m.Len())
	}
	if n := m.Expire(10); n != 2 {
		t.Fatalf("expire(10) removed %d", n)
	}
	got := m.Active(CategoryInventory)
	if len(got) != 1 || got[0].Pos != (grid.Vec3i{X: 2}) {
		t.Fatalf("active=%v", got)
	}
	if cats := m.Categories(); len(cats) != 1 || cats[0] != CategoryInventory {
		t.Fatalf("categories=%v", cats)
	}
}

func TestManager_ReplaceKeepsOneBox(t *testing.T) {
	m := NewManager()
	m.Add(CategoryInventory, Box{Pos: grid.Vec3i{X: 1}, RemoveAtTick: 5})
	m.Replace(CategoryInventory, Box{Pos: grid.Vec3i{X: 3}, RemoveAtTick: 5, Text: []string{"iron"}})
	got := m.Active(CategoryInventory)
	if len(got) != 1 || got[0].Pos.X != 3 || got[0].Text[0] != "iron" {
		t.Fatalf("active=%v", got)
	}
	m.Clear(CategoryInventory)
	if m.Len() != 0 {
		t.Fatalf("clear left %d boxes", m.Len())
	}
}

func TestBox_RGB(t *testing.T) {
	r, g, b := Box{Color: 0xFF8000}.RGB()
	if r != 1 || g != float32(0x80)/255 || b != 0 {
		t.Fatalf("rgb=%v %v %v", r, g, b)
	}
}
