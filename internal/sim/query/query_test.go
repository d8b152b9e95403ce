package query

import (
	"testing"

	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
)

type racks map[grid.Vec3i]*rack.Rack

func (m racks) RackAt(p grid.Vec3i) *rack.Rack { return m[p] }

var (
	cobble = rack.ItemKey{Item: "minecraft:cobblestone"}
	iron   = rack.ItemKey{Item: "minecraft:iron_ingot"}
)

func newRack(pos grid.Vec3i, slots ...rack.Slot) *rack.Rack {
	r := rack.New(pos, 0, rack.DefaultLayout())
	for i, s := range slots {
		r.SetSlot(i, s)
	}
	return r
}

// A controller at (0,0,0) with racks A at x=1 and B at x=2.
func twoRacks(a, b []rack.Slot) Cluster {
	src := racks{
		{X: 1}: newRack(grid.Vec3i{X: 1}, a...),
		{X: 2}: newRack(grid.Vec3i{X: 2}, b...),
	}
	return Cluster{
		Members: []grid.Vec3i{{}, {X: 1}, {X: 2}},
		Racks:   src,
	}
}

// has_item is answered per rack, never from the cluster sum.
func TestHasItem_SingleRackThreshold(t *testing.T) {
	c := twoRacks(
		[]rack.Slot{{Key: cobble, Count: 5}},
		[]rack.Slot{{Key: cobble, Count: 5}},
	)
	if c.HasItem(cobble, 10) {
		t.Fatalf("5+5 across racks must not satisfy min=10")
	}
	if !c.HasItem(cobble, 5) {
		t.Fatalf("a single rack holds 5")
	}
	if got := c.TotalCount(cobble); got != 10 {
		t.Fatalf("TotalCount=%d want 10", got)
	}
}

func TestEndToEnd_AggregateAndLocate(t *testing.T) {
	c := twoRacks(
		[]rack.Slot{{Key: cobble, Count: 10}},
		[]rack.Slot{{Key: cobble, Count: 5}, {Key: iron, Count: 3}},
	)
	all := c.AllAggregated()
	if all[cobble] != 15 || all[iron] != 3 || len(all) != 2 {
		t.Fatalf("aggregate=%v", all)
	}
	if !c.HasItem(cobble, 10) || c.HasItem(cobble, 11) {
		t.Fatalf("has_item thresholds wrong")
	}
	if at, ok := c.Locate(iron, 1); !ok || at != (grid.Vec3i{X: 2}) {
		t.Fatalf("Locate iron=%v ok=%v", at, ok)
	}
	if at, ok := c.Locate(cobble, 1); !ok || at != (grid.Vec3i{X: 1}) {
		t.Fatalf("Locate cobble should pick first member, got %v", at)
	}
	if _, ok := c.Locate(iron, 4); ok {
		t.Fatalf("Locate found a rack below threshold")
	}
	if c.RackCount() != 2 {
		t.Fatalf("RackCount=%d", c.RackCount())
	}
	if c.FreeSlots() != 2*27-3 {
		t.Fatalf("FreeSlots=%d", c.FreeSlots())
	}
}

func TestAllAggregated_EmptyCluster(t *testing.T) {
	c := Cluster{Members: []grid.Vec3i{{}}, Racks: racks{}}
	if len(c.AllAggregated()) != 0 || c.TotalCount(cobble) != 0 || c.HasItem(cobble, 1) {
		t.Fatalf("empty cluster reported content")
	}
}

func TestHasItem_ZeroMinimum(t *testing.T) {
	c := twoRacks(nil, nil)
	if !c.HasItem(cobble, 0) {
		t.Fatalf("min=0 is trivially satisfied by any rack")
	}
}
