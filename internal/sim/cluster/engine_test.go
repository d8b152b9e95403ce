package cluster

import (
	"errors"
	"testing"

	"storageracks.ai/internal/sim/grid"
)

func TestEngine_PlaceRackJoinsController(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.mustPlace(x(0), grid.Controller(1))
	d := f.place(x(1), grid.Rack(0))
	if !d.Committed() || !d.HasController || d.Controller != x(0) || d.Members != 2 {
		t.Fatalf("decision=%+v", d)
	}
	c := f.reg.Get(x(0))
	if c == nil || c.Len() != 2 || !c.Contains(x(1)) {
		t.Fatalf("members=%v", c.Members())
	}
	if off := f.offs[x(1)]; off != x(1) {
		t.Fatalf("offset=%v want (1,0,0)", off)
	}
}

func TestEngine_PlaceControllerAdoptsOrphans(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.mustPlace(x(1), grid.Rack(0))
	f.mustPlace(x(2), grid.Rack(0))
	if _, ok := f.controllerOf(x(1)); ok {
		t.Fatalf("orphan rack has a controller")
	}
	f.mustPlace(x(0), grid.Controller(1))
	for _, p := range []grid.Vec3i{x(1), x(2)} {
		if c, ok := f.controllerOf(p); !ok || c != x(0) {
			t.Fatalf("rack %v controller=%v ok=%v", p, c, ok)
		}
	}
	if f.reg.Get(x(0)).RackCount() != 2 {
		t.Fatalf("rack count=%d", f.reg.Get(x(0)).RackCount())
	}
}

func TestEngine_RequireControllerRejectsOrphanPlacement(t *testing.T) {
	f := newFixture(t, EngineConfig{RequireController: true})
	d := f.place(x(4), grid.Rack(0))
	if d.Outcome != RejectedNotConnected || !errors.Is(d.Outcome.Err(), ErrNotConnected) {
		t.Fatalf("decision=%+v", d)
	}
	if f.g.IsOccupied(x(4)) {
		t.Fatalf("rejected rack left in grid")
	}
}

// Removing the middle of a five-rack line splits the cluster.
func TestEngine_SplitOnRemoval(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 5, 1)
	if f.reg.Get(x(0)).Len() != 6 {
		t.Fatalf("members before split=%d", f.reg.Get(x(0)).Len())
	}

	d := f.remove(x(3))
	if !d.Committed() {
		t.Fatalf("removal outcome=%s", d.Outcome)
	}
	c := f.reg.Get(x(0))
	if c.RackCount() != 2 || !c.Contains(x(1)) || !c.Contains(x(2)) {
		t.Fatalf("members after split=%v", c.Members())
	}
	for _, p := range []grid.Vec3i{x(4), x(5)} {
		if _, ok := f.controllerOf(p); ok {
			t.Fatalf("rack %v kept its controller offset", p)
		}
		if c.Contains(p) {
			t.Fatalf("rack %v still a member", p)
		}
	}
}

// A bridge between two clusters is refused and nothing changes.
func TestEngine_MergeOfTwoClustersRejected(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 3, 1)
	f.mustPlace(x(8), grid.Controller(1))
	for _, n := range []int{7, 6, 5} {
		f.mustPlace(x(n), grid.Rack(0))
	}
	beforeA := f.reg.Get(x(0)).Members()
	beforeB := f.reg.Get(x(8)).Members()
	beforeOffs := map[grid.Vec3i]grid.Vec3i{}
	for k, v := range f.offs {
		beforeOffs[k] = v
	}

	d := f.place(x(4), grid.Rack(0))
	if d.Outcome != RejectedConflict {
		t.Fatalf("outcome=%s want conflict", d.Outcome)
	}
	if len(d.Conflict) != 2 || d.Conflict[0] != x(0) || d.Conflict[1] != x(8) {
		t.Fatalf("conflict=%v", d.Conflict)
	}
	assertSame(t, beforeA, f.reg.Get(x(0)).Members())
	assertSame(t, beforeB, f.reg.Get(x(8)).Members())
	if len(f.offs) != len(beforeOffs) {
		t.Fatalf("offsets changed: %v -> %v", beforeOffs, f.offs)
	}
	for k, v := range beforeOffs {
		if f.offs[k] != v {
			t.Fatalf("offset for %v changed", k)
		}
	}
	if f.g.IsOccupied(x(4)) {
		t.Fatalf("bridge left in grid")
	}
}

func TestEngine_SecondControllerRejected(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 2, 1)
	d := f.place(x(3), grid.Controller(4))
	if d.Outcome != RejectedConflict {
		t.Fatalf("outcome=%s", d.Outcome)
	}
	if f.reg.Get(x(3)) != nil || f.reg.Len() != 1 {
		t.Fatalf("rejected controller registered")
	}
}

// Tier 1 holds 20 racks, the 21st is refused.
func TestEngine_CapacityLimit(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 20, 1)
	c := f.reg.Get(x(0))
	if c.RackCount() != 20 {
		t.Fatalf("rack count=%d want 20", c.RackCount())
	}

	d := f.place(x(21), grid.Rack(0))
	if d.Outcome != RejectedCapacity || !errors.Is(d.Outcome.Err(), ErrCapacityExceeded) {
		t.Fatalf("outcome=%s want capacity", d.Outcome)
	}
	if c.Len() != 21 || c.Contains(x(21)) {
		t.Fatalf("members changed after rejection: %d", c.Len())
	}
	if _, ok := f.offs[x(21)]; ok {
		t.Fatalf("rejected rack got an offset")
	}
}

func TestEngine_TierZeroControllerOwnsNothing(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.mustPlace(x(0), grid.Controller(0))
	if d := f.place(x(1), grid.Rack(0)); d.Outcome != RejectedCapacity {
		t.Fatalf("outcome=%s", d.Outcome)
	}
}

func TestEngine_ControllerPlacementOverCapacityRejected(t *testing.T) {
	f := newFixture(t, EngineConfig{Policy: Policy{TierUnit: 2}})
	for i := 1; i <= 3; i++ {
		f.mustPlace(x(i), grid.Rack(0))
	}
	if d := f.place(x(0), grid.Controller(1)); d.Outcome != RejectedCapacity {
		t.Fatalf("outcome=%s", d.Outcome)
	}
	if f.reg.Len() != 0 {
		t.Fatalf("controller registered on rejection")
	}
	f.mustPlace(x(0), grid.Controller(2))
	if f.reg.Get(x(0)).RackCount() != 3 {
		t.Fatalf("rack count=%d", f.reg.Get(x(0)).RackCount())
	}
}

func TestEngine_RemoveControllerOrphansCluster(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 3, 1)
	f.remove(x(0))
	if f.reg.Len() != 0 {
		t.Fatalf("controller not destroyed")
	}
	for i := 1; i <= 3; i++ {
		if _, ok := f.controllerOf(x(i)); ok {
			t.Fatalf("rack %d kept offset", i)
		}
	}
	// A new controller can now claim the racks.
	f.mustPlace(x(4), grid.Controller(1))
	if f.reg.Get(x(4)).RackCount() != 3 {
		t.Fatalf("new controller members=%v", f.reg.Get(x(4)).Members())
	}
	if c, _ := f.controllerOf(x(1)); c != x(4) {
		t.Fatalf("rack 1 controller=%v", c)
	}
}

func TestEngine_RemoveLeafRack(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 3, 1)
	f.remove(x(3))
	c := f.reg.Get(x(0))
	if c.RackCount() != 2 || c.Contains(x(3)) {
		t.Fatalf("members=%v", c.Members())
	}
}

func TestEngine_RemovalThenBridgeReconnects(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.line(0, 5, 1)
	f.remove(x(3))
	f.mustPlace(x(3), grid.Rack(0))
	if f.reg.Get(x(0)).RackCount() != 5 {
		t.Fatalf("reconnect members=%v", f.reg.Get(x(0)).Members())
	}
	if c, ok := f.controllerOf(x(5)); !ok || c != x(0) {
		t.Fatalf("far rack not reconnected")
	}
}

func TestEngine_SplitInThreeDimensions(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	hub := grid.Vec3i{X: 0, Y: 5, Z: 0}
	f.mustPlace(grid.Vec3i{}, grid.Controller(1))
	for y := 1; y <= 5; y++ {
		f.mustPlace(grid.Vec3i{Y: y}, grid.Rack(0))
	}
	arms := []grid.Vec3i{hub.Add(grid.Vec3i{X: 1}), hub.Add(grid.Vec3i{Z: 1}), hub.Add(grid.Vec3i{Y: 1})}
	for _, a := range arms {
		f.mustPlace(a, grid.Rack(0))
	}
	f.remove(hub)
	c := f.reg.Get(grid.Vec3i{})
	if c.RackCount() != 4 {
		t.Fatalf("rack count=%d want 4", c.RackCount())
	}
	for _, a := range arms {
		if _, ok := f.controllerOf(a); ok {
			t.Fatalf("arm %v still owned", a)
		}
	}
}

func TestEngine_RebuildCorrectsStaleHints(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.g.Set(x(0), grid.Controller(1))
	f.g.Set(x(1), grid.Rack(0))
	f.g.Set(x(2), grid.Rack(0))
	f.g.Set(x(10), grid.Rack(0))
	f.reg.Create(x(0), 1)
	f.offs[x(1)] = x(1)
	f.offs[x(2)] = x(-5)
	f.offs[x(10)] = grid.Vec3i{X: 10}

	st := f.eng.Rebuild(f.g.Positions())
	if st.Components != 2 || st.Conflicts != 0 || st.StaleHints != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if f.reg.Get(x(0)).RackCount() != 2 {
		t.Fatalf("members=%v", f.reg.Get(x(0)).Members())
	}
	if f.offs[x(2)] != x(2) {
		t.Fatalf("stale offset not corrected: %v", f.offs[x(2)])
	}
	if _, ok := f.offs[x(10)]; ok {
		t.Fatalf("orphan hint not cleared")
	}
}

func TestEngine_RebuildClearsConflictingComponent(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.g.Set(x(0), grid.Controller(1))
	f.g.Set(x(1), grid.Rack(0))
	f.g.Set(x(2), grid.Controller(1))
	f.reg.Create(x(0), 1)
	f.reg.Create(x(2), 1)
	f.offs[x(1)] = x(1)

	st := f.eng.Rebuild(f.g.Positions())
	if st.Conflicts != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if _, ok := f.offs[x(1)]; ok {
		t.Fatalf("conflicting rack kept its offset")
	}
}

func TestEngine_ObserverSeesEveryTraversal(t *testing.T) {
	f := newFixture(t, EngineConfig{})
	f.mustPlace(x(1), grid.Rack(0))
	f.mustPlace(x(0), grid.Controller(1))
	f.place(x(3), grid.Controller(1))
	f.place(x(2), grid.Rack(0))
	if f.obs[DiscoverNone] != 1 || f.obs[DiscoverController] != 2 || f.obs[DiscoverConflict] != 1 {
		t.Fatalf("observer=%v", f.obs)
	}
}

func assertSame(t *testing.T, want, got []grid.Vec3i) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("members %v != %v", got, want)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("members %v != %v", got, want)
		}
	}
}
